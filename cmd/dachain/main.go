// Command dachain is the line-oriented REPL entry point: it parses
// startup flags, wires a master.Supervisor, and dispatches whitespace-
// tokenized commands from stdin until exit or Ctrl-C.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"dachain/internal/master"
	"dachain/internal/persistence"
)

func main() {
	dbPath := flag.String("db", "", "optional boltdb file for write-through persistence (empty = disabled)")
	flag.Parse()

	log.Println("Starting daChain...")

	sup := master.NewSupervisor()

	if *dbPath != "" {
		a, err := persistence.OpenBoltAdapter(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open persistence adapter: %v", err)
		}
		defer a.Close()
		sup.Adapter = a
		log.Printf("Persistence enabled: %s", *dbPath)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println("daChain ready. Type a command (try \"initiate daChain 2\").")
	for {
		select {
		case <-sigChan:
			log.Println("Shutting down gracefully...")
			sup.StopUserProcess()
			return
		case line, ok := <-lines:
			if !ok {
				sup.StopUserProcess()
				return
			}
			if done := dispatch(sup, line); done {
				return
			}
		}
	}
}

func dispatch(sup *master.Supervisor, line string) (exit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "exit":
		sup.StopUserProcess()
		fmt.Println("bye")
		return true

	case "initiate":
		handleInitiate(sup, fields)

	case "run":
		if len(fields) == 2 && fields[1] == "userProcess" {
			if err := sup.RunUserProcess(); err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Println("user process running")
			}
		} else {
			fmt.Println("usage: run userProcess")
		}

	case "stop":
		if len(fields) == 2 && fields[1] == "userProcess" {
			sup.StopUserProcess()
			fmt.Println("user process stopped")
		} else {
			fmt.Println("usage: stop userProcess")
		}

	case "mine":
		handleMine(sup, fields)

	case "verify-transaction":
		handleVerify(sup, fields)

	case "snapshot":
		handleSnapshot(sup, fields)

	case "trace":
		handleTrace(sup, fields)

	default:
		fmt.Println("unrecognized command:", fields[0])
	}

	return false
}

func handleInitiate(sup *master.Supervisor, fields []string) {
	if len(fields) != 3 {
		fmt.Println("usage: initiate daChain N | initiate fullNodes L")
		return
	}

	n, err := strconv.Atoi(fields[2])
	if err != nil {
		fmt.Println("error: expected an integer argument")
		return
	}

	switch fields[1] {
	case "daChain":
		if err := sup.InitiateChain(n); err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Printf("daChain initiated with %d assets\n", n)
	case "fullNodes":
		if err := sup.InitiateFullNodes(n); err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Printf("%d full nodes initiated\n", n)
	default:
		fmt.Println("usage: initiate daChain N | initiate fullNodes L")
	}
}

func handleMine(sup *master.Supervisor, fields []string) {
	if len(fields) != 2 {
		fmt.Println("usage: mine <node_id>")
		return
	}
	n, ok := sup.Node(fields[1])
	if !ok {
		fmt.Println("error: unknown node", fields[1])
		return
	}
	block, err := n.Mine()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("mined block height=%d hash=%s txs=%d\n", block.Header.Height, block.Header.Hash(), len(block.Transactions))
}

func handleVerify(sup *master.Supervisor, fields []string) {
	if len(fields) != 2 {
		fmt.Println("usage: verify-transaction <node_id>")
		return
	}
	steps, ok, err := sup.VerifyTransaction(fields[1], true)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, step := range steps {
		fmt.Println(step)
	}
	fmt.Println("result:", ok)
}

func handleSnapshot(sup *master.Supervisor, fields []string) {
	if len(fields) != 3 || fields[1] != "daChain" {
		fmt.Println("usage: snapshot daChain ALL | snapshot daChain <node_id>")
		return
	}
	snapshots, err := sup.SnapshotChain(fields[2])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for nodeID, entries := range snapshots {
		fmt.Printf("%s:\n", nodeID)
		for _, e := range entries {
			fmt.Printf("  height=%d hash=%s\n", e.Height, e.ShortHash)
		}
	}
}

func handleTrace(sup *master.Supervisor, fields []string) {
	if len(fields) != 3 {
		fmt.Println("usage: trace <asset_id> ALL | trace <asset_id> <k>")
		return
	}
	limit := 0
	if fields[2] != "ALL" {
		k, err := strconv.Atoi(fields[2])
		if err != nil {
			fmt.Println("error: expected ALL or an integer")
			return
		}
		limit = k
	}
	for _, e := range sup.TraceAsset(fields[1], limit) {
		fmt.Printf("height=%d block=%s tx=%s\n", e.Height, e.BlockHash, e.Tx.TxID)
	}
}
