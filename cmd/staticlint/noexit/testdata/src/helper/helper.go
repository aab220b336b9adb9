package helper

import (
	"log"
	"os"
)

func main() {
	log.Fatalln("not the main package")
	os.Exit(1)
}
