// chat-cli is a line-based terminal client for the marketchat service. It
// drives the same conversation engine the mobile app embeds: optimistic
// sends, live message and typing streams, and read receipts.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"marketchat/internal/backend"
	"marketchat/internal/channel"
	"marketchat/internal/common"
	"marketchat/internal/config"
	"marketchat/internal/conversation"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID          string `json:"id"`
		Handle      string `json:"handle"`
		DisplayName string `json:"display_name"`
	} `json:"user"`
}

type conversationResponse struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	ProviderID string `json:"provider_id"`
}

func main() {
	handle := flag.String("handle", "", "account handle")
	password := flag.String("password", "", "account password")
	peer := flag.String("peer", "", "user id of the conversation counterpart")
	register := flag.Bool("register", false, "create the account before logging in")
	name := flag.String("name", "", "display name used with -register")
	flag.Parse()

	if *handle == "" || *password == "" || *peer == "" {
		fmt.Fprintln(os.Stderr, "usage: chat-cli -handle <handle> -password <password> -peer <user-id> [-register -name <name>]")
		os.Exit(2)
	}

	cfg := config.LoadConfig()

	auth, err := authenticate(cfg.Engine.BaseURL, *handle, *password, *name, *register)
	if err != nil {
		log.Fatalf("authentication failed: %v", err)
	}
	log.Printf("logged in as %s (%s)", auth.User.Handle, auth.User.ID)

	conv, err := openConversation(cfg.Engine.BaseURL, auth.Token, *peer)
	if err != nil {
		log.Fatalf("could not open conversation: %v", err)
	}

	client := backend.NewHTTPClient(cfg.Engine.BaseURL, cfg.Engine.WebSocketURL, auth.Token)
	manager := channel.NewManager(client, cfg.Engine.EventBuffer)

	ctrl := conversation.NewController(client, manager, conversation.Params{
		ConversationID:  conv.ID,
		LocalUserID:     auth.User.ID,
		RemoteUserID:    *peer,
		TypingStaleness: cfg.Engine.TypingStaleness,
		ReconcileWindow: cfg.Engine.ReconcileWindow,
		Callbacks: conversation.Callbacks{
			OnTimelineChanged: func() {},
			OnScrollToBottom:  func() {},
			OnTypingChanged: func(users []string) {
				if len(users) > 0 {
					fmt.Printf("** %s is typing...\n", strings.Join(users, ", "))
				}
			},
			OnSendFailed: func(sendErr *common.SendError) {
				fmt.Printf("!! send failed, input restored: %q (%v)\n", sendErr.RestoredInput, sendErr)
			},
		},
	})

	ctx := context.Background()
	if err := ctrl.Start(ctx); err != nil {
		log.Fatalf("could not start conversation: %v", err)
	}
	defer ctrl.Close()

	printHistory(ctrl.Messages())
	fmt.Println("commands: /history, /read, /img <url> [caption], /quit; anything else is sent as a message")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/history":
			printHistory(ctrl.Messages())
		case line == "/read":
			ctrl.Foreground(ctx)
		case strings.HasPrefix(line, "/img "):
			parts := strings.SplitN(strings.TrimPrefix(line, "/img "), " ", 2)
			caption := ""
			if len(parts) == 2 {
				caption = parts[1]
			}
			if err := ctrl.SendImage(ctx, caption, parts[0]); err != nil {
				fmt.Printf("!! %v\n", err)
			}
		default:
			ctrl.InputChanged(line)
			if err := ctrl.SendText(ctx, line); err != nil {
				fmt.Printf("!! %v\n", err)
			}
		}
	}
}

func printHistory(messages []common.Message) {
	for _, msg := range messages {
		marker := " "
		if msg.IsRead() {
			marker = "✓"
		}
		body := msg.Content
		if msg.Type == common.MessageTypeImage {
			body = fmt.Sprintf("[image] %s %s", msg.AttachmentURL, msg.Content)
		}
		fmt.Printf("%s %s %s: %s\n", msg.CreatedAt.Local().Format("15:04:05"), marker, msg.SenderID, body)
	}
}

func authenticate(baseURL, handle, password, name string, register bool) (*authResponse, error) {
	path := "/api/v1/login"
	payload := map[string]string{"handle": handle, "password": password}
	if register {
		path = "/api/v1/register"
		payload["display_name"] = name
	}

	var auth authResponse
	if err := postJSON(baseURL+path, "", payload, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func openConversation(baseURL, token, peerID string) (*conversationResponse, error) {
	var conv conversationResponse
	if err := postJSON(baseURL+"/api/v1/conversations", token, map[string]string{"peer_id": peerID}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func postJSON(url, token string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
