package main

import "media-pipeline-service/cmd"

func main() {
	cmd.Execute()
}
