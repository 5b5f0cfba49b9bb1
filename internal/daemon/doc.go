// Package daemon coordinates the long-running webar process.
//
// It wires configuration, the asset registry, the blob store, the conversion
// dispatcher, and the HTTP API into a single lifecycle with flock-based
// locking to prevent multiple instances. On start it resumes every asset left
// in the converting state by a previous run; on stop it cancels in-flight
// conversions, which leaves those assets converting for the next start.
//
// Keep orchestration logic here: conversion and storage behaviour live in
// their own packages while the daemon focuses on startup, shutdown, and
// health reporting.
package daemon
