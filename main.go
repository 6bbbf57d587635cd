package main

import (
	"context"

	"github.com/shandysiswandi/passcode/internal/app"
)

// @title           Passcode API
// @version         1.0
// @description     Passcode provides username/password signup and login confirmed by a one-time passcode.
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:5000
func main() {
	application := app.New()    // Initialize the application
	wait := application.Start() // Start the application and wait for the termination signal
	<-wait                      // Wait for the application to receive a termination signal
	ctx, cancel := context.WithTimeout(context.Background(), application.ShutdownTimeout())
	defer cancel()
	application.Stop(ctx) // Stop the application gracefully
}
