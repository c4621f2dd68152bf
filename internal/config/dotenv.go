package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFileName is the dotenv file looked up in the working directory and in
// the data directory.
const EnvFileName = ".env"

// ErrEnvFileNotFound indicates an explicitly requested env file is missing.
var ErrEnvFileNotFound = errors.New("env file not found")

// LoadDotEnv loads each existing file into the process environment. Missing
// files are skipped. Variables that are already set are kept, so the first
// file to set a variable wins.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// dataDirEnvFile returns the env file kept in the data directory, resolved
// from DATA_DIR after the primary env file has been applied.
func dataDirEnvFile() string {
	dir := os.Getenv("DATA_DIR")
	if dir == "" {
		dir = DefaultDataDir()
	}
	return filepath.Join(dir, EnvFileName)
}

// LoadConfig builds the AppConfig from env files and the environment.
//
// envPath, when set, must exist and replaces ./.env. The data directory's
// .env is applied after it and fills only what is still unset. Real
// environment variables always win.
func LoadConfig(envPath string) (AppConfig, error) {
	primary := envPath
	if primary == "" {
		primary = EnvFileName
	} else if _, err := os.Stat(primary); err != nil {
		return AppConfig{}, fmt.Errorf("%w: %s", ErrEnvFileNotFound, primary)
	}

	if err := LoadDotEnv(primary); err != nil {
		return AppConfig{}, err
	}
	if err := LoadDotEnv(dataDirEnvFile()); err != nil {
		return AppConfig{}, err
	}

	envCfg, err := LoadFromEnv()
	if err != nil {
		return AppConfig{}, err
	}
	return envCfg.ToAppConfig(), nil
}
