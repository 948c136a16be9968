// Copyright 2024-2026 Aiku AI

// Package admin exposes the community registry over a small HTTP API, for
// the operator tooling that configures senders and receivers.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/guildrelay/pkg/store"
)

// Server is the admin HTTP API.
type Server struct {
	registry *store.CommunityQuery
	token    string
	log      zerolog.Logger
}

// New creates the admin server. An empty token disables authentication;
// only do that behind a trusted network boundary.
func New(registry *store.CommunityQuery, token string, log zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		token:    token,
		log:      log.With().Str("component", "admin").Logger(),
	}
}

// HTTPServer builds the http.Server for the given listen address.
func (s *Server) HTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/communities/{id}", s.auth(s.handleOverview))
	mux.HandleFunc("PUT /api/communities/{id}/senders/{user}", s.auth(s.handleAddSender))
	mux.HandleFunc("DELETE /api/communities/{id}/senders/{user}", s.auth(s.handleRemoveSender))
	mux.HandleFunc("PUT /api/communities/{id}/sender-channels/{channel}", s.auth(s.handleAddSenderChannel))
	mux.HandleFunc("DELETE /api/communities/{id}/sender-channels/{channel}", s.auth(s.handleRemoveSenderChannel))
	mux.HandleFunc("PUT /api/communities/{id}/receiver", s.auth(s.handleSetReceiver))
	mux.HandleFunc("DELETE /api/communities/{id}/receiver", s.auth(s.handleRemoveReceiver))
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("Registry operation failed")
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// overview mirrors the registry state for one community.
type overview struct {
	CommunityID       string   `json:"community_id"`
	AuthorizedSenders []string `json:"authorized_senders"`
	SenderChannels    []string `json:"sender_channels"`
	Receiver          string   `json:"receiver,omitempty"`
	SensitiveReceiver string   `json:"sensitive_receiver,omitempty"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	communityID := r.PathValue("id")

	community, err := s.registry.GetOrCreate(ctx, communityID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	senders, err := s.registry.ListSenderChannels(ctx, communityID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	regular, err := s.registry.GetReceiverChannel(ctx, communityID, false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sensitive, err := s.registry.GetReceiverChannel(ctx, communityID, true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, overview{
		CommunityID:       communityID,
		AuthorizedSenders: community.AuthorizedSenders,
		SenderChannels:    senders,
		Receiver:          regular,
		SensitiveReceiver: sensitive,
	})
}

func (s *Server) handleAddSender(w http.ResponseWriter, r *http.Request) {
	err := s.registry.AddAuthorizedSender(r.Context(), r.PathValue("id"), r.PathValue("user"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveSender(w http.ResponseWriter, r *http.Request) {
	removed, err := s.registry.RemoveAuthorizedSender(r.Context(), r.PathValue("id"), r.PathValue("user"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !removed {
		http.Error(w, "not an authorized sender", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSenderChannel(w http.ResponseWriter, r *http.Request) {
	err := s.registry.AddSenderChannel(r.Context(), r.PathValue("id"), r.PathValue("channel"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveSenderChannel(w http.ResponseWriter, r *http.Request) {
	removed, err := s.registry.RemoveSenderChannel(r.Context(), r.PathValue("id"), r.PathValue("channel"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !removed {
		http.Error(w, "not a sender channel", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type receiverRequest struct {
	ChannelID string `json:"channel_id"`
	Sensitive bool   `json:"sensitive"`
}

func (s *Server) handleSetReceiver(w http.ResponseWriter, r *http.Request) {
	var req receiverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err := s.registry.SetReceiverChannel(r.Context(), r.PathValue("id"), req.ChannelID, req.Sensitive)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveReceiver(w http.ResponseWriter, r *http.Request) {
	sensitive := r.URL.Query().Get("sensitive") == "true"
	removed, err := s.registry.RemoveReceiverChannel(r.Context(), r.PathValue("id"), sensitive)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if removed == "" {
		http.Error(w, "no receiver configured", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"removed": removed})
}
