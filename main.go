// Copyright 2025 Younes Essl
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("molyscan-sync - Offline-First Sync Engine")
	fmt.Println("=========================================")
	fmt.Println()
	fmt.Println("molyscan-sync keeps the molyscan field-sales app working with zero")
	fmt.Println("connectivity: scans and CRM actions captured offline are queued in a")
	fmt.Println("durable SQLite store and reconciled with the server exactly once, in")
	fmt.Println("order, when connectivity returns.")
	fmt.Println()

	fmt.Println("Packages:")
	fmt.Println()
	fmt.Println("1. offsync/")
	fmt.Println("   The engine: durable queue store, connectivity monitor, offline")
	fmt.Println("   state, capture path and sync orchestrator.")
	fmt.Println()
	fmt.Println("2. internal/devserver/")
	fmt.Println("   In-memory reference implementation of the remote API contract")
	fmt.Println("   (idempotent upserts keyed by client-supplied identifiers).")
	fmt.Println()
	fmt.Println("3. cmd/molysync/")
	fmt.Println("   CLI: 'serve' runs the reference server, 'simulate' drives a")
	fmt.Println("   device through the offline/online scenario, 'status' inspects")
	fmt.Println("   a local queue database.")
	fmt.Println()
	fmt.Println("Try it: go run ./cmd/molysync serve &")
	fmt.Println("        go run ./cmd/molysync simulate --server http://localhost:8080")
}
