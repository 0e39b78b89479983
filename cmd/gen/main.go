package main

import (
	"CoParent/internal/repository"
	"CoParent/pkg/logger"
)

func main() {
	logger.Init()
	defer logger.Sync()

	repository.RunGenerate()
}
