// Motion Coach - real-time pose coaching server
package main

import "github.com/ashureev/motion-coach/cmd/server/commands"

func main() {
	commands.Execute()
}
