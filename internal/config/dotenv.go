package config

import "github.com/joho/godotenv"

// LoadDotEnv reads a .env file into the process environment.
// Variables already set in the environment take precedence.
func LoadDotEnv(path string) error {
	return godotenv.Load(path)
}
