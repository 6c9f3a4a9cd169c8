package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/memecoin2016/meme-desk/internal/eligibility"
	"github.com/memecoin2016/meme-desk/internal/proof"
	log "github.com/sirupsen/logrus"
)

func main() {
	var (
		dataset = flag.String("dataset", "", "Whitelist dataset JSON file")
		round   = flag.String("round", proof.AirdropRound(0), "Round name the dataset belongs to")
		root    = flag.String("root", "", "Merkle root to verify every proof against (optional)")
		help    = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		fmt.Println("Usage: eligibility [options] address...")
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *dataset == "" {
		log.Fatal("Dataset is required. Use -dataset flag.")
	}

	f, err := os.Open(*dataset)
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}
	idx, err := proof.ReadIndex(f)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to read dataset: %v", err)
	}
	registry := proof.NewRegistry(map[string]*proof.Index{*round: idx})
	fmt.Printf("Round: %s\n", *round)
	fmt.Printf("Entries: %d\n", idx.Len())

	if *root != "" {
		if len(common.FromHex(*root)) != common.HashLength {
			log.Fatalf("Invalid merkle root: %s", *root)
		}
		checked, mismatched := registry.VerifyAgainstRoot(*round, common.HexToHash(*root))
		fmt.Printf("Verified: %d/%d proofs match %s\n", checked-mismatched, checked, *root)
	}

	resolver := eligibility.NewResolver(registry)
	for _, arg := range flag.Args() {
		outcome := resolver.Check(arg, *round)
		fmt.Printf("%s: %s %s\n", arg, outcome.Status, outcome.Message())
		if outcome.Eligible() {
			hashes := make([]string, len(outcome.Proof))
			for i, h := range outcome.Proof {
				hashes[i] = h.Hex()
			}
			fmt.Printf("  proof: [%s]\n", strings.Join(hashes, ", "))
		}
	}
}
