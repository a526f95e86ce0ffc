// Command therapystub serves a local stand-in for the remote therapy
// service so the session core can be exercised without real credentials.
// It honors the wire contract only; the replies and labels it produces are
// canned heuristics, not an attempt at real analysis.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message             string           `json:"message"`
	ConversationHistory []historyMessage `json:"conversation_history"`
}

var emotionKeywords = map[string][]string{
	"joy":     {"happy", "glad", "great", "wonderful", "awesome", "love", "excited"},
	"sadness": {"sad", "down", "unhappy", "lonely", "cry", "miss", "lost"},
	"anger":   {"angry", "furious", "mad", "hate", "annoyed", "unfair"},
	"fear":    {"afraid", "scared", "worried", "anxious", "nervous", "panic"},
}

var sarcasmMarkers = []string{"yeah right", "oh great", "sure, because", "just perfect", "as if"}

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	latency := flag.Duration("latency", 300*time.Millisecond, "artificial response delay")
	failEvery := flag.Int("fail-every", 0, "return a 500 on every Nth request (0 disables)")
	flag.Parse()

	var served atomic.Int64

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Post("/api/chat", func(w http.ResponseWriter, req *http.Request) {
		n := served.Add(1)
		if *failEvery > 0 && n%int64(*failEvery) == 0 {
			respond(w, http.StatusInternalServerError, map[string]string{"detail": "stub: simulated failure"})
			return
		}

		var payload chatRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			respond(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
			return
		}
		if strings.TrimSpace(payload.Message) == "" {
			respond(w, http.StatusBadRequest, map[string]string{"detail": "Empty message"})
			return
		}

		time.Sleep(*latency)

		label, confidence := classify(payload.Message)
		sarcastic, reason := detectSarcasm(payload.Message)

		respond(w, http.StatusOK, map[string]any{
			"response": reply(payload),
			"sarcasm":  map[string]any{"sarcastic": sarcastic, "reason": reason},
			"emotion":  map[string]any{"label": label, "confidence": confidence},
		})
	})

	log.Printf("therapy stub listening on %s (latency=%s)", *addr, *latency)
	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Fatalf("stub server error: %v", err)
	}
}

func respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func classify(message string) (string, float64) {
	normalized := strings.ToLower(message)
	for _, label := range []string{"joy", "sadness", "anger", "fear"} {
		for _, word := range emotionKeywords[label] {
			if strings.Contains(normalized, word) {
				return label, 85
			}
		}
	}
	return "neutral", 60
}

func detectSarcasm(message string) (bool, string) {
	normalized := strings.ToLower(message)
	for _, marker := range sarcasmMarkers {
		if strings.Contains(normalized, marker) {
			return true, fmt.Sprintf("contains the marker phrase %q", marker)
		}
	}
	return false, ""
}

func reply(payload chatRequest) string {
	if len(payload.ConversationHistory) == 0 {
		return "Thank you for sharing that with me. How long have you been feeling this way?"
	}
	return "I hear you. What do you think would help you most right now?"
}
