// cmd/tools/format-compare/main.go
//
// format-compare checks that the JSON and TOON encodings of the intent
// catalog are interchangeable: the parsed intents must match one for one,
// and a scorer built from each encoding must classify a built-in utterance
// corpus identically. It also reports the size of each encoding.
package main

import (
	"flag"
	"fmt"
	"os"

	"intent-workers/internal/intent/scoring"
	"intent-workers/pkg/catalog"
)

// The corpus mixes clear single-intent phrasings with short ambiguous ones
// so an encoding difference would surface on easy and borderline inputs
// alike. English and Spanish, matching the catalog keyword sets.
var corpus = []string{
	"send 500 to my brother",
	"transfer money to John",
	"what is my checking account balance",
	"how much money do I have",
	"pay my electricity bill",
	"I want to pay the water bill tomorrow",
	"show me my transactions from last week",
	"list recent payments on my account",
	"block my card",
	"I lost my credit card, freeze it",
	"enviar dinero a mi madre",
	"cual es mi saldo",
	"pagar la factura de la luz",
	"historial de transacciones",
	"bloquear mi tarjeta",
	"money",
	"bill payment history",
	"card",
	"I need help with my account",
	"transfer",
}

func main() {
	jsonPath := flag.String("json", "configs/intent-catalog.json", "Path to the JSON catalog")
	toonPath := flag.String("toon", "configs/intent-catalog.toon", "Path to the TOON catalog")
	verbose := flag.Bool("v", false, "Print the top intent for every corpus utterance")
	flag.Parse()

	jsonCat, err := catalog.LoadFile(*jsonPath, catalog.FormatJSON)
	if err != nil {
		fmt.Printf("Failed to load JSON catalog: %v\n", err)
		os.Exit(1)
	}
	toonCat, err := catalog.LoadFile(*toonPath, catalog.FormatTOON)
	if err != nil {
		fmt.Printf("Failed to load TOON catalog: %v\n", err)
		os.Exit(1)
	}

	mismatches := compareIntents(jsonCat, toonCat)
	for _, m := range mismatches {
		fmt.Println("  " + m)
	}
	if len(mismatches) == 0 {
		fmt.Printf("Catalog equality: OK (%d intents)\n", len(jsonCat.Intents))
	} else {
		fmt.Printf("Catalog equality: %d mismatches\n", len(mismatches))
	}

	agree, total, err := compareScoring(jsonCat, toonCat, *verbose)
	if err != nil {
		fmt.Printf("Scoring comparison failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Classification agreement: %d/%d utterances\n", agree, total)

	jsonSize := fileSize(*jsonPath)
	toonSize := fileSize(*toonPath)
	fmt.Printf("Encoding size: json=%d bytes (~%d tokens), toon=%d bytes (~%d tokens)\n",
		jsonSize, approxTokens(jsonSize), toonSize, approxTokens(toonSize))
	if jsonSize > 0 {
		fmt.Printf("TOON is %.0f%% of the JSON size.\n", float64(toonSize)/float64(jsonSize)*100)
	}

	if len(mismatches) > 0 || agree != total {
		os.Exit(1)
	}
}

// compareIntents reports differences between the two parsed catalogs.
// Position matters: catalog order is the score tie-break everywhere.
func compareIntents(jsonCat, toonCat *catalog.Catalog) []string {
	var diffs []string
	if len(jsonCat.Intents) != len(toonCat.Intents) {
		return append(diffs, fmt.Sprintf("intent count: json=%d toon=%d",
			len(jsonCat.Intents), len(toonCat.Intents)))
	}
	for i := range jsonCat.Intents {
		a, b := jsonCat.Intents[i], toonCat.Intents[i]
		if a.ID != b.ID {
			diffs = append(diffs, fmt.Sprintf("position %d: json=%q toon=%q", i, a.ID, b.ID))
			continue
		}
		if !sameIntent(a, b) {
			diffs = append(diffs, fmt.Sprintf("intent %q differs between encodings", a.ID))
		}
	}
	return diffs
}

func sameIntent(a, b catalog.Intent) bool {
	return a.ID == b.ID &&
		a.Label == b.Label &&
		a.Description == b.Description &&
		sameList(a.Keywords, b.Keywords) &&
		sameList(a.Triggers, b.Triggers) &&
		a.SemanticSeed == b.SemanticSeed
}

// sameList treats a nil slice and an empty slice as equal; the JSON decoder
// produces the former for a missing field, the TOON decoder for an empty
// cell.
func sameList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// compareScoring classifies every corpus utterance with a scorer built from
// each catalog and counts agreement on the top intent.
func compareScoring(jsonCat, toonCat *catalog.Catalog, verbose bool) (agree, total int, err error) {
	jsonScorer, err := scoring.NewScorer(jsonCat)
	if err != nil {
		return 0, 0, fmt.Errorf("json scorer: %w", err)
	}
	toonScorer, err := scoring.NewScorer(toonCat)
	if err != nil {
		return 0, 0, fmt.Errorf("toon scorer: %w", err)
	}

	for _, utterance := range corpus {
		jsonTop, err := topIntent(jsonScorer, utterance)
		if err != nil {
			return agree, total, err
		}
		toonTop, err := topIntent(toonScorer, utterance)
		if err != nil {
			return agree, total, err
		}
		total++
		if jsonTop == toonTop {
			agree++
		}
		if verbose || jsonTop != toonTop {
			fmt.Printf("  %-44q json=%s toon=%s\n", utterance, jsonTop, toonTop)
		}
	}
	return agree, total, nil
}

func topIntent(s *scoring.Scorer, utterance string) (string, error) {
	ranked, err := s.Score(utterance)
	if err != nil {
		return "", err
	}
	if len(ranked) == 0 {
		return "", nil
	}
	return ranked[0].IntentID, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// approxTokens is the rough one-token-per-four-bytes prompt cost heuristic.
func approxTokens(n int64) int64 {
	return (n + 3) / 4
}
