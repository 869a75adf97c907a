// Package storage wires the blob-storage implementation with a startup retry-loop
package storage

import (
	"log"
	"time"

	"github.com/UnendingLoop/ImageShrinker/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
)

func NewImgStorage(cfg *config.Config, delay time.Duration) *miniostorage.MinioImageStorage {
	var client *miniostorage.MinioImageStorage
	var err error

	for {
		log.Println("Connecting to IMG-storage...")
		client, err = miniostorage.NewMinioClient(cfg)
		if err != nil {
			log.Printf("Failed to init connection to IMG-storage: %v\nNext retry in %v...", err, delay)
			time.Sleep(delay)
			continue
		}
		log.Println("Successfully connected IMG-storage!")
		break
	}

	return client
}
