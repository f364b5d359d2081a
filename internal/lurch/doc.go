// Package lurch models the lurch-dl JSON event protocol.
//
// lurch-dl, started with --json-data, writes one JSON object per line. Each
// object carries a "type" discriminant and a type-specific payload. This
// package decodes those lines into Event values, renders the status text for
// each kind and builds the command line used to start the tool.
package lurch
