// Package main provides a CLI tool for generating dev keypairs, DID
// documents, and signed tokens for the tracevault API. Pair it with the
// mock DID resolver to exercise the full gate locally.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tracevault/internal/identity"
)

type keysOutput struct {
	DID         string            `json:"did"`
	DIDDocument identity.Document `json:"didDocument"`
	PrivateSeed string            `json:"privateSeed"`
}

type tokenOutput struct {
	Token  string            `json:"token"`
	Type   string            `json:"type"`
	Claims map[string]any    `json:"claims"`
	Usage  map[string]string `json:"usage"`
}

func main() {
	keysCmd := flag.NewFlagSet("keys", flag.ExitOnError)
	retrievalCmd := flag.NewFlagSet("retrieval", flag.ExitOnError)
	auditCmd := flag.NewFlagSet("audit", flag.ExitOnError)

	keysDID := keysCmd.String("did", "did:example:owner1", "DID the document is issued for")

	retrievalKey := retrievalCmd.String("key", "", "Credential key (UUID). Generated if empty.")
	retrievalSeed := retrievalCmd.String("seed", "", "Base64url Ed25519 seed from 'tokengen keys'")

	auditDID := auditCmd.String("did", "did:example:owner1", "Owner DID to query the access log for")
	auditSeed := auditCmd.String("seed", "", "Base64url Ed25519 seed from 'tokengen keys'")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "keys":
		keysCmd.Parse(os.Args[2:])
		generateKeys(*keysDID)
	case "retrieval":
		retrievalCmd.Parse(os.Args[2:])
		generateRetrievalToken(*retrievalKey, *retrievalSeed)
	case "audit":
		auditCmd.Parse(os.Args[2:])
		generateAuditToken(*auditDID, *auditSeed)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate dev keys and signed tokens for tracevault

WARNING: keys generated here are for local development only.

Usage:
  tokengen <command> [flags]

Commands:
  keys       Generate an Ed25519 keypair and a DID document to seed the resolver
  retrieval  Sign a retrieval token {"value": <credential key>}
  audit      Sign an access-log query token {"did": <owner DID>}

Examples:
  # Generate a keypair and document for an audience DID
  tokengen keys -did did:example:aud1

  # Sign a retrieval token with its private seed
  tokengen retrieval -key 550e8400-e29b-41d4-a716-446655440000 -seed <privateSeed>

  # Sign an audit token as the owner
  tokengen audit -did did:example:owner1 -seed <privateSeed>

Use "tokengen <command> -h" for more information about a command.`)
}

func generateKeys(did string) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fatal("generating keypair", err)
	}

	doc := identity.Document{
		ID: did,
		VerificationMethod: []identity.VerificationMethod{{
			ID:         did + "#key-1",
			Type:       "JsonWebKey2020",
			Controller: did,
			PublicKeyJwk: &identity.JSONWebKey{
				Kty: "OKP",
				Crv: "Ed25519",
				Kid: "key-1",
				X:   base64.RawURLEncoding.EncodeToString(pub),
			},
		}},
	}

	printJSON(keysOutput{
		DID:         did,
		DIDDocument: doc,
		PrivateSeed: base64.RawURLEncoding.EncodeToString(priv.Seed()),
	})
}

func generateRetrievalToken(key, seed string) {
	if key == "" {
		key = uuid.NewString()
	} else if _, err := uuid.Parse(key); err != nil {
		fatal("parsing credential key", err)
	}

	token := sign(seed, jwt.MapClaims{"value": key})
	printJSON(tokenOutput{
		Token:  token,
		Type:   "retrieval",
		Claims: map[string]any{"value": key},
		Usage:  map[string]string{"endpoint": "GET /verifiable-credentials/" + token},
	})
}

func generateAuditToken(did, seed string) {
	token := sign(seed, jwt.MapClaims{"did": did})
	printJSON(tokenOutput{
		Token:  token,
		Type:   "audit",
		Claims: map[string]any{"did": did},
		Usage:  map[string]string{"endpoint": "GET /access-log/" + token},
	})
}

func sign(seed string, claims jwt.MapClaims) string {
	if seed == "" {
		fmt.Fprintln(os.Stderr, "-seed is required; run 'tokengen keys' first")
		os.Exit(1)
	}
	raw, err := base64.RawURLEncoding.DecodeString(seed)
	if err != nil || len(raw) != ed25519.SeedSize {
		fmt.Fprintln(os.Stderr, "Invalid seed: expected base64url Ed25519 seed from 'tokengen keys'")
		os.Exit(1)
	}
	priv := ed25519.NewKeyFromSeed(raw)

	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		fatal("signing token", err)
	}
	return token
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encoding output", err)
	}
}

func fatal(action string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", action, err)
	os.Exit(1)
}
