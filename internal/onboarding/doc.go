// Package onboarding provides bulk student onboarding from CSV uploads.
//
// A university operator uploads a CSV of student records. The package turns
// that text into provisioned accounts, one row at a time, and keeps an
// auditable upload job describing the outcome. It has no transport or storage
// dependencies of its own: identities, profiles, student records and jobs are
// reached through the store interfaces in ports.go.
//
// # Pipeline
//
//  1. [Parse] tokenizes the CSV text into typed [Row] values and per-row
//     diagnostics for rows whose column count does not match the header.
//  2. [ValidateRow] checks each row against the student schema and collects
//     every failure reason.
//  3. [Provisioner] creates the identity, role profile and student record for
//     one row, unwinding completed steps when a later one fails.
//  4. [Orchestrator] runs validation, the duplicate-email guard and
//     provisioning for every row without ever aborting the batch.
//  5. [Tracker] records the job's three transitions: created, parsed and
//     completed (or failed when parsing is fatal).
//
// [Service.Import] ties the steps together and is the entry point used by the
// web layer.
//
// # Errors
//
// Only [ErrMalformedInput] and [ErrSchema] fail an import as a whole. Every
// other problem is captured per row in [BatchResult.Failed] and in the job's
// error log. [MapError] turns any of them into a [UserMessage] with a support
// code.
package onboarding
