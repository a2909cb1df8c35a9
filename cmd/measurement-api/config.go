package main

import (
	"fmt"

	"github.com/united-manufacturing-hub/umh-utils/env"
)

func postgresConnString() (string, error) {
	host, err := env.GetAsString("POSTGRES_HOST", false, "db")
	if err != nil {
		return "", err
	}
	port, err := env.GetAsInt("POSTGRES_PORT", false, 5432)
	if err != nil {
		return "", err
	}
	user, err := env.GetAsString("POSTGRES_USER", true, "")
	if err != nil {
		return "", err
	}
	password, err := env.GetAsString("POSTGRES_PASSWORD", true, "")
	if err != nil {
		return "", err
	}
	dbName, err := env.GetAsString("POSTGRES_DATABASE", true, "")
	if err != nil {
		return "", err
	}
	sslMode, err := env.GetAsString("POSTGRES_SSL_MODE", false, "require")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbName, sslMode), nil
}

func addr(port int) string {
	return fmt.Sprintf("0.0.0.0:%d", port)
}
