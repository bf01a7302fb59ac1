package main

import "github.com/Taichi-iskw/talk-subtitles/cmd"

func main() {
	cmd.Execute()
}
