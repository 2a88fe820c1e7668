package gcppubsub

import (
	"log"
	"os"
)

func GetGCPProjectID() string {
	projectID := os.Getenv("GCP_PROJECT_ID")
	if projectID == "" {
		log.Fatal("GCP_PROJECT_ID environment variable must be set.")
	}
	return projectID
}
