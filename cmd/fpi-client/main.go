package main

import (
	"flag"
	"fmt"
	"log"
	"net/rpc"
	"os"
	"strconv"

	"github.com/NBICNamibia/acoustid-index/fpindex"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  fpi-client [-addr <addr>] add <doc-id> <term> [<term>...]\n")
	fmt.Fprintf(os.Stderr, "  fpi-client [-addr <addr>] search <term> [<term>...]\n")
	fmt.Fprintf(os.Stderr, "  fpi-client [-addr <addr>] commit\n")
	os.Exit(1)
}

func parseTerms(args []string) []uint32 {
	terms := make([]uint32, 0, len(args))
	for _, arg := range args {
		term, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			log.Fatalf("invalid term %q: %v", arg, err)
		}
		terms = append(terms, uint32(term))
	}
	return terms
}

func main() {
	addr := flag.String("addr", "localhost:1736", "server address")
	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		usage()
	}

	client, err := rpc.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("failed to dial rpc: %v", err)
	}

	switch args[0] {
	case "add":
		if len(args) < 3 {
			usage()
		}
		id, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			log.Fatalf("invalid doc id %q: %v", args[1], err)
		}
		var reply struct{}
		err = client.Call("Index.Add", &fpindex.AddArgs{ID: uint32(id), Terms: parseTerms(args[2:])}, &reply)
		if err != nil {
			log.Fatalf("add failed: %v", err)
		}
		fmt.Println("done")

	case "search":
		if len(args) < 2 {
			usage()
		}
		var reply fpindex.SearchReply
		err = client.Call("Index.Search", &fpindex.SearchArgs{Terms: parseTerms(args[1:])}, &reply)
		if err != nil {
			log.Fatalf("search failed: %v", err)
		}
		for _, result := range reply.Results {
			fmt.Printf("%d\t%d\n", result.ID, result.Score)
		}

	case "commit":
		var reply struct{}
		if err := client.Call("Index.Commit", &struct{}{}, &reply); err != nil {
			log.Fatalf("commit failed: %v", err)
		}
		fmt.Println("done")

	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", args[0])
		usage()
	}
}
