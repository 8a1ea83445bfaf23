//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"marketchat/internal/chat/handler"
	"marketchat/internal/chat/repository"
	"marketchat/internal/chat/service"
	"marketchat/internal/config"
	"marketchat/internal/dbmongo"
	"marketchat/internal/dbmysql"
	"marketchat/internal/session"
)

// InitializeApplication builds the whole service graph. Wire generates the
// real body; the cleanup closes the attachment store and stops the hub.
func InitializeApplication() (*Application, func(), error) {
	wire.Build(
		config.LoadConfig,
		dbmysql.NewMySQL,
		ProvideMongo,
		dbmongo.NewAttachmentStorage,
		ProvideHub,
		repository.NewMessageRepository,
		repository.NewConversationRepository,
		repository.NewUserRepository,
		service.NewChatService,
		session.NewManager,
		handler.NewChatHandler,
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil, nil
}
