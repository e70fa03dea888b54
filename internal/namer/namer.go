// Package namer generates unique word-word-word phrases used to name
// workspace directories. Phrases are recorded in a ledger file so a name is
// never handed out twice, and so workspace directories stay recognizable to
// humans inspecting the repository.
package namer

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Namer allocates phrases against a persistent ledger.
type Namer struct {
	ledgerPath string
	words      []string
}

// New creates a namer backed by the ledger at the given path.
func New(ledgerPath string) *Namer {
	return &Namer{ledgerPath: ledgerPath, words: wordList}
}

// Generate returns a unique three-word phrase and records it in the ledger.
func (n *Namer) Generate() (string, error) {
	existing, err := n.loadLedger()
	if err != nil {
		return "", err
	}

	for range 10000 {
		parts := make([]string, 3)
		for i := range parts {
			parts[i] = n.words[rand.IntN(len(n.words))]
		}
		phrase := strings.Join(parts, "-")
		if existing[phrase] {
			continue
		}
		existing[phrase] = true
		if err := n.saveLedger(existing); err != nil {
			return "", err
		}
		return phrase, nil
	}
	return "", fmt.Errorf("failed to generate a unique phrase after many attempts")
}

func (n *Namer) loadLedger() (map[string]bool, error) {
	existing := make(map[string]bool)
	data, err := os.ReadFile(n.ledgerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return existing, nil
		}
		return nil, fmt.Errorf("read phrase ledger: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			existing[line] = true
		}
	}
	return existing, nil
}

func (n *Namer) saveLedger(phrases map[string]bool) error {
	if err := os.MkdirAll(filepath.Dir(n.ledgerPath), 0755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	sorted := make([]string, 0, len(phrases))
	for p := range phrases {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)
	return os.WriteFile(n.ledgerPath, []byte(strings.Join(sorted, "\n")+"\n"), 0644)
}
