// Package handler exposes the chat service over REST and WebSocket.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"marketchat/internal/chat/repository"
	"marketchat/internal/chat/service"
	"marketchat/internal/common"
	"marketchat/internal/config"
	"marketchat/internal/dbmongo"
	"marketchat/internal/dbmysql"
	"marketchat/internal/hub"
	"marketchat/internal/session"
)

const maxAttachmentSize = 10 << 20 // 10 MiB

type ChatHandler struct {
	svc         service.ChatService
	sessions    *session.Manager
	events      *hub.Hub
	attachments *dbmongo.AttachmentStorage

	typingRate  rate.Limit
	typingBurst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewChatHandler(
	cfg *config.Config,
	svc service.ChatService,
	sessions *session.Manager,
	events *hub.Hub,
	attachments *dbmongo.AttachmentStorage,
) *ChatHandler {
	return &ChatHandler{
		svc:         svc,
		sessions:    sessions,
		events:      events,
		attachments: attachments,
		typingRate:  rate.Limit(cfg.Server.TypingRatePerSecond),
		typingBurst: cfg.Server.TypingRateBurst,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Routes builds the service router. Everything except register and login
// requires a session token.
func (h *ChatHandler) Routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/register", h.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(h.authMiddleware)

	authed.HandleFunc("/conversations", h.handleOpenConversation).Methods(http.MethodPost)
	authed.HandleFunc("/conversations/{id}/messages", h.handleGetMessages).Methods(http.MethodGet)
	authed.HandleFunc("/conversations/{id}/messages", h.handleSendMessage).Methods(http.MethodPost)
	authed.HandleFunc("/conversations/{id}/read", h.handleMarkRead).Methods(http.MethodPost)
	authed.HandleFunc("/conversations/{id}/typing", h.handleTyping).Methods(http.MethodPost)
	authed.HandleFunc("/conversations/{id}/ws/messages", h.handleMessagesSocket).Methods(http.MethodGet)
	authed.HandleFunc("/conversations/{id}/ws/typing", h.handleTypingSocket).Methods(http.MethodGet)

	authed.HandleFunc("/attachments", h.handleUploadAttachment).Methods(http.MethodPost)
	authed.HandleFunc("/attachments/{id}", h.handleDownloadAttachment).Methods(http.MethodGet)

	return r
}

func messageChannel(conversationID string) string { return "messages." + conversationID }
func typingChannel(conversationID string) string  { return "typing." + conversationID }

type registerRequest struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}

func (h *ChatHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := h.sessions.Register(r.Context(), req.Handle, req.DisplayName, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Token: token,
		User:  userResponse{ID: user.ID, Handle: user.Handle, DisplayName: user.DisplayName},
	})
}

type loginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

func (h *ChatHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := h.sessions.Login(r.Context(), req.Handle, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid handle or password")
			return
		}
		log.Printf("login failed for handle %q: %v", req.Handle, err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token: token,
		User:  userResponse{ID: user.ID, Handle: user.Handle, DisplayName: user.DisplayName},
	})
}

type openConversationRequest struct {
	PeerID string `json:"peer_id"`
}

type conversationResponse struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	ProviderID string `json:"provider_id"`
}

func (h *ChatHandler) handleOpenConversation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req openConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.svc.EnsureConversation(r.Context(), claims.UserID, req.PeerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{
		ID:         conv.ID,
		CustomerID: conv.CustomerID,
		ProviderID: conv.ProviderID,
	})
}

func (h *ChatHandler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.authorizeConversation(w, r)
	if !ok {
		return
	}

	messages, err := h.svc.GetMessageHistory(r.Context(), conv.ID)
	if err != nil {
		log.Printf("load history for %s: %v", conv.ID, err)
		writeError(w, http.StatusInternalServerError, "could not load messages")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	SenderID      string             `json:"sender_id"`
	RecipientID   string             `json:"recipient_id"`
	Content       string             `json:"content"`
	Type          common.MessageType `json:"type"`
	AttachmentURL string             `json:"attachment_url"`
}

func (h *ChatHandler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	conv, ok := h.authorizeConversation(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The sender identity comes from the session, never the payload.
	msg := &common.Message{
		ConversationID: conv.ID,
		SenderID:       claims.UserID,
		RecipientID:    req.RecipientID,
		Content:        req.Content,
		Type:           req.Type,
		AttachmentURL:  req.AttachmentURL,
	}

	saved, err := h.svc.SendMessage(r.Context(), msg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.events.Publish(messageChannel(conv.ID), common.MessageEvent{
		Kind:    common.MessageEventMessage,
		Message: saved,
	})

	writeJSON(w, http.StatusCreated, saved)
}

func (h *ChatHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	conv, ok := h.authorizeConversation(w, r)
	if !ok {
		return
	}

	mark, err := h.svc.MarkRead(r.Context(), conv.ID, claims.UserID)
	if err != nil {
		log.Printf("mark read for %s by %s: %v", conv.ID, claims.UserID, err)
		writeError(w, http.StatusInternalServerError, "could not mark messages as read")
		return
	}

	if mark != nil {
		h.events.Publish(messageChannel(conv.ID), common.MessageEvent{
			Kind: common.MessageEventRead,
			Read: mark,
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) handleTyping(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	conv, ok := h.authorizeConversation(w, r)
	if !ok {
		return
	}

	if !h.typingLimiter(claims.UserID).Allow() {
		writeError(w, http.StatusTooManyRequests, "typing signals rate limited")
		return
	}

	var status common.TypingStatus
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status.ConversationID = conv.ID
	status.UserID = claims.UserID

	h.events.Publish(typingChannel(conv.ID), status)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	attachment, err := h.attachments.Upload(r.Context(), header.Filename, mimeType, claims.UserID, file)
	if err != nil {
		if errors.Is(err, dbmongo.ErrUnsupportedAttachment) {
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		log.Printf("upload attachment for %s: %v", claims.UserID, err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusCreated, attachment)
}

func (h *ChatHandler) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	attachmentID := mux.Vars(r)["id"]

	stream, attachment, err := h.attachments.Download(r.Context(), attachmentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}
	if closer, ok := stream.(io.Closer); ok {
		defer closer.Close()
	}

	w.Header().Set("Content-Type", attachment.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", attachment.Filename))
	if _, err := io.Copy(w, stream); err != nil {
		log.Printf("stream attachment %s: %v", attachmentID, err)
	}
}

// authorizeConversation resolves the conversation from the path and checks
// that the session user participates in it.
func (h *ChatHandler) authorizeConversation(w http.ResponseWriter, r *http.Request) (*dbmysql.Conversation, bool) {
	claims := claimsFrom(r.Context())
	conversationID := mux.Vars(r)["id"]

	conv, err := h.svc.Conversation(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return nil, false
		}
		log.Printf("resolve conversation %s: %v", conversationID, err)
		writeError(w, http.StatusInternalServerError, "could not resolve conversation")
		return nil, false
	}

	if !conv.HasParticipant(claims.UserID) {
		writeError(w, http.StatusForbidden, "not a participant of this conversation")
		return nil, false
	}
	return conv, true
}

func (h *ChatHandler) typingLimiter(userID string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	limiter, ok := h.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(h.typingRate, h.typingBurst)
		h.limiters[userID] = limiter
	}
	return limiter
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
