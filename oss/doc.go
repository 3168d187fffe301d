// Package oss provides the core orchestration engine for the Open Science
// Stack liquid-handling platform.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - location.go: the domain model (equipment, labware kinds, physical locations, wells)
//   - experiment.go: per-experiment binding table and slot occupancy
//   - orchestrator.go: the action surface (load, transfer, mix, discard, incubate, ...)
//
// # Architecture
//
// Clients name protocol roles with opaque LocationIDs. Each action resolves
// those ids against the experiment's binding table; unbound destinations are
// placed by the Allocator (best-fit under capacity, wellplate batching for
// multi-destination transfers) and bound before any liquid moves. Actions
// translate into LiquidHandler pipette primitives and Operator commands.
//
// Long-running physical processes (incubation, absorbance measurement) do
// not complete inline: the orchestrator emits the command and suspends on a
// SignalBoard until an external completion signal arrives, with a timeout
// derived from the declared duration.
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - LiquidHandler: pipette motion primitives (attach tip, move, aspirate, dispense)
//   - Operator: opaque command sink for human/robot instructions
//
// Both ship with logging implementations so protocols can run end-to-end
// without hardware; the cmd/ package wires those together with a SignalBoard
// auto-completer to replay the example protocols.
package oss
