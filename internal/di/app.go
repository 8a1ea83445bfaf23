package di

import (
	"context"
	"time"

	"gorm.io/gorm"

	"marketchat/internal/chat/handler"
	"marketchat/internal/config"
	"marketchat/internal/dbmongo"
	"marketchat/internal/hub"
	"marketchat/internal/session"
)

// Application bundles everything the service entrypoint needs.
type Application struct {
	Config   *config.Config
	DB       *gorm.DB
	Mongo    *dbmongo.MongoClient
	Events   *hub.Hub
	Sessions *session.Manager
	Handler  *handler.ChatHandler
}

func ProvideHub(cfg *config.Config) (*hub.Hub, func()) {
	h := hub.NewHub(cfg.Server.HubWorkers, cfg.Server.HubQueueSize)
	return h, h.Shutdown
}

func ProvideMongo(cfg *config.Config) (*dbmongo.MongoClient, func(), error) {
	client, err := dbmongo.NewMongoConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(ctx)
	}
	return client, cleanup, nil
}
