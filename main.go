package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/fieldverify/field-verify-api/api/handlers"
	"github.com/fieldverify/field-verify-api/config"
	"github.com/fieldverify/field-verify-api/logging"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	a.Initialize() //initialize database and router

	logger := logging.New()
	port := os.Getenv("PORT")
	baseURL := os.Getenv("BASE_URL")
	logger.Infow("field-verify-api is up and running",
		"port", port,
		"url", baseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", port), a.Router))
}
