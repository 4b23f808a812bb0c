package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/feedbridge/feedbridge/pkg/activity"
)

const activityContentType = "application/activity+json"

// actorDoc is the Service actor document served for a feed source.
type actorDoc struct {
	AtContext         []string   `json:"@context"`
	ID                string     `json:"id"`
	Type              string     `json:"type"`
	PreferredUsername string     `json:"preferredUsername"`
	Name              string     `json:"name,omitempty"`
	Inbox             string     `json:"inbox"`
	Summary           string     `json:"summary,omitempty"`
	Icon              *actorIcon `json:"icon,omitempty"`
	PublicKey         *actorKey  `json:"publicKey,omitempty"`
}

type actorIcon struct {
	Type      string `json:"type"`
	MediaType string `json:"mediaType"`
	URL       string `json:"url"`
}

type actorKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// jrd is the webfinger JSON Resource Descriptor.
type jrd struct {
	Subject string    `json:"subject"`
	Links   []jrdLink `json:"links"`
}

type jrdLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

// inboxActivity is the subset of an incoming activity the inbox cares about.
type inboxActivity struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Actor  string          `json:"actor"`
	Object json.RawMessage `json:"object"`
}

// actorURI returns the identity URI for a source hostname on this instance.
func (s *Server) actorURI(hostname string) string {
	return fmt.Sprintf("https://%s/%s", s.origin, url.PathEscape(hostname))
}

// webfingerHandler resolves acct:<hostname>@<origin> to the source actor
func (s *Server) webfingerHandler(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource")
	acct := strings.TrimPrefix(resource, "acct:")

	hostname, domain, found := strings.Cut(acct, "@")
	if !found || domain != s.origin {
		RenderError(w, r, fmt.Errorf("unknown resource %q", resource), http.StatusNotFound)
		return
	}

	if _, err := s.resolver.Resolve(r.Context(), hostname); err != nil {
		RenderError(w, r, fmt.Errorf("unknown source %q", hostname), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/jrd+json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(jrd{
		Subject: "acct:" + acct,
		Links: []jrdLink{
			{Rel: "self", Type: activityContentType, Href: s.actorURI(hostname)},
		},
	})
}

// actorHandler serves the Service actor document for a source
func (s *Server) actorHandler(w http.ResponseWriter, r *http.Request) {
	hostname := r.PathValue("hostname")

	info, err := s.resolver.Resolve(r.Context(), hostname)
	if err != nil {
		RenderError(w, r, fmt.Errorf("unknown source %q", hostname), http.StatusNotFound)
		return
	}

	id := s.actorURI(hostname)
	doc := actorDoc{
		AtContext: []string{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		ID:                id,
		Type:              "Service",
		PreferredUsername: hostname,
		Name:              info.Title,
		Inbox:             id + "/inbox",
		Summary:           fmt.Sprintf("This is a proxied RSS feed from %s", info.URL),
	}

	if info.Icon != "" {
		doc.Icon = &actorIcon{Type: "Image", MediaType: iconMediaType(info.Icon), URL: info.Icon}
	}
	if s.publicKey != "" {
		doc.PublicKey = &actorKey{ID: id + "#main-key", Owner: id, PublicKeyPem: s.publicKey}
	}

	w.Header().Set("Content-Type", activityContentType)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(doc)
}

// inboxHandler accepts Follow and Undo(Follow) activities for a source.
// Anything else is acknowledged and dropped.
func (s *Server) inboxHandler(w http.ResponseWriter, r *http.Request) {
	hostname := r.PathValue("hostname")

	if _, err := s.resolver.Resolve(r.Context(), hostname); err != nil {
		RenderError(w, r, fmt.Errorf("unknown source %q", hostname), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		RenderError(w, r, fmt.Errorf("read body: %w", err), http.StatusBadRequest)
		return
	}

	var act inboxActivity
	if err := json.Unmarshal(body, &act); err != nil {
		RenderError(w, r, fmt.Errorf("parse activity: %w", err), http.StatusBadRequest)
		return
	}

	switch act.Type {
	case "Follow":
		s.handleFollow(r.Context(), w, r, hostname, act, body)
	case "Undo":
		s.handleUndo(r.Context(), w, r, hostname, act)
	default:
		lgr.Printf("[DEBUG] ignoring %s activity for %s", act.Type, hostname)
		RenderJSON(w, r, http.StatusAccepted, map[string]string{"status": "ignored"})
	}
}

// handleFollow records the subscription, then accepts and back-fills in the
// background so a slow remote inbox cannot stall the follow response.
func (s *Server) handleFollow(ctx context.Context, w http.ResponseWriter, r *http.Request, hostname string, act inboxActivity, raw []byte) {
	if act.Actor == "" {
		RenderError(w, r, fmt.Errorf("follow without actor"), http.StatusBadRequest)
		return
	}

	if err := s.registry.Subscribe(ctx, hostname, act.Actor); err != nil {
		RenderError(w, r, fmt.Errorf("subscribe: %w", err), http.StatusInternalServerError)
		return
	}
	lgr.Printf("[INFO] %s followed %s", act.Actor, hostname)

	// the Accept carries the original follow activity as its object
	payload := map[string]any{
		"@context": activity.Context,
		"id":       fmt.Sprintf("https://%s/%s", s.origin, uuid.NewString()),
		"type":     "Accept",
		"actor":    s.actorURI(hostname),
		"object":   json.RawMessage(raw),
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := s.deliverer.Deliver(bgCtx, payload, act.Actor); err != nil {
			lgr.Printf("[WARN] accept delivery to %s failed: %v", act.Actor, err)
		}

		if err := s.bootstrapper.BootstrapSubscriber(bgCtx, hostname, act.Actor); err != nil {
			lgr.Printf("[WARN] bootstrap of %s for %s failed: %v", hostname, act.Actor, err)
		}
	}()

	RenderJSON(w, r, http.StatusAccepted, map[string]string{"status": "followed"})
}

// handleUndo removes the subscription when the inner activity is a Follow
func (s *Server) handleUndo(ctx context.Context, w http.ResponseWriter, r *http.Request, hostname string, act inboxActivity) {
	var inner inboxActivity
	if len(act.Object) > 0 {
		_ = json.Unmarshal(act.Object, &inner)
	}
	if inner.Type != "" && inner.Type != "Follow" {
		RenderJSON(w, r, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}

	subscriber := inner.Actor
	if subscriber == "" {
		subscriber = act.Actor
	}
	if subscriber == "" {
		RenderError(w, r, fmt.Errorf("undo without actor"), http.StatusBadRequest)
		return
	}

	if err := s.registry.Unsubscribe(ctx, hostname, subscriber); err != nil {
		RenderError(w, r, fmt.Errorf("unsubscribe: %w", err), http.StatusInternalServerError)
		return
	}
	lgr.Printf("[INFO] %s unfollowed %s", subscriber, hostname)

	RenderJSON(w, r, http.StatusAccepted, map[string]string{"status": "unfollowed"})
}

// iconMediaType guesses the avatar media type from the file extension
func iconMediaType(icon string) string {
	switch {
	case strings.HasSuffix(icon, ".png"):
		return "image/png"
	case strings.HasSuffix(icon, ".jpg"), strings.HasSuffix(icon, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(icon, ".gif"):
		return "image/gif"
	default:
		return "image/png"
	}
}
