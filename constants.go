package main

// API route constants for the local serve front
const (
	RouteState     = "/api/state"
	RouteKey       = "/api/key"
	RouteBackspace = "/api/backspace"
	RouteGuess     = "/api/guess"
	RouteNewGame   = "/api/new-game"
	RouteHistory   = "/api/history"
	RouteProfile   = "/api/profile"
	RouteHealthz   = "/healthz"
)

// Error message constants
const (
	ErrorNotLoggedIn = "You are not logged in. Run `vortamiko login` first."
	ErrorNoProfile   = "No profile found for this account."
)
