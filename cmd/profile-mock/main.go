package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
)

// playerEntry is one fixture player. Player is served verbatim as the
// "player" field of the /player response.
type playerEntry struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Player json.RawMessage `json:"player"`
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "mock-profiles.json", "path to mock data file")
		apiKey  = flag.String("api-key", "", "require this API-Key header on /player")
		logReqs = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read mock data: %v", err)
	}

	var entries []playerEntry
	if err := json.Unmarshal(file, &entries); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}
	byName := make(map[string]playerEntry, len(entries))
	byID := make(map[string]playerEntry, len(entries))
	for _, e := range entries {
		byName[strings.ToLower(e.Name)] = e
		byID[e.ID] = e
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/profiles/minecraft/{name}", func(w http.ResponseWriter, r *http.Request) {
		entry, ok := byName[strings.ToLower(r.PathValue("name"))]
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": entry.ID, "name": entry.Name})
	})
	mux.HandleFunc("GET /player", func(w http.ResponseWriter, r *http.Request) {
		if *apiKey != "" && r.Header.Get("API-Key") != *apiKey {
			writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "cause": "Invalid API key"})
			return
		}
		entry, ok := byID[strings.ReplaceAll(r.URL.Query().Get("uuid"), "-", "")]
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "player": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "player": entry.Player})
	})

	var handler http.Handler = mux
	if *logReqs {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.RequestURI())
			mux.ServeHTTP(w, r)
		})
	}

	addr := ":" + *port
	log.Printf("mock profile service listening on %s with %d players", addr, len(entries))
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}
