// Package domain contains the core conversion concepts: requests, render jobs,
// flags and the response contract.
// Keep this package free of transport (HTTP) and infrastructure (S3/renderer) concerns.
package domain
