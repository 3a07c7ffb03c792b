// Mock DID resolver for local development and e2e tests. Serves DID
// documents from a JSON seed file in the universal-resolver response
// shape, so the vault's identity layer can run against it unchanged.
//
// Seed documents with the output of `tokengen keys`:
//
//	{
//	  "did:example:aud1": { "id": "did:example:aud1", "verificationMethod": [ ... ] }
//	}
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultPort      = "8083"
	defaultLatencyMs = "50"
)

type Document = map[string]any

type ResolutionResponse struct {
	DIDDocument Document `json:"didDocument"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

var (
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)

	mu        sync.RWMutex
	documents = map[string]Document{}
)

func main() {
	port := getEnv("PORT", defaultPort)

	if path := os.Getenv("DOCUMENTS_FILE"); path != "" {
		if err := loadDocuments(path); err != nil {
			log.Fatalf("loading documents from %s: %v", path, err)
		}
	}

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/1.0/identifiers/", handleResolve)
	http.HandleFunc("/documents", handleRegister)

	log.Printf("🔑 Mock DID resolver starting on port %s", port)
	log.Printf("📄 Seeded documents: %d", len(documents))
	log.Printf("⏱️  Simulated latency: %dms", latencyMs)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "did-resolver",
		"version": "1.0.0",
	})
}

func handleResolve(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)

	log.Printf("📥 Incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	did := strings.TrimPrefix(r.URL.Path, "/1.0/identifiers/")
	if did == "" {
		sendError(w, "DID is required", http.StatusBadRequest)
		return
	}

	// Magic DID for forcing resolution failures in tests.
	if did == "did:example:unresolvable" {
		sendError(w, "DID not found", http.StatusNotFound)
		return
	}

	mu.RLock()
	doc, ok := documents[did]
	mu.RUnlock()
	if !ok {
		sendError(w, "DID not found", http.StatusNotFound)
		log.Printf("🔍 Unknown DID: %s", did)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ResolutionResponse{DIDDocument: doc})

	log.Printf("✅ Resolved %s", did)
}

// handleRegister lets tests push documents at runtime instead of
// restarting with a new seed file: POST /documents with the same JSON
// shape as the seed file.
func handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var incoming map[string]Document
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		sendError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	mu.Lock()
	for did, doc := range incoming {
		documents[did] = doc
	}
	total := len(documents)
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]int{"documents": total})

	log.Printf("📝 Registered %d document(s), %d total", len(incoming), total)
}

func loadDocuments(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &documents)
}

func sendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
	log.Printf("❌ Error response: %d - %s", code, message)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️  Invalid integer value for %s, using default: %s", key, defaultValue)
		intValue, _ = strconv.Atoi(defaultValue)
	}
	return intValue
}
