// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validDrivers      = []string{"sqlite", "postgres"}
	validStorageTypes = []string{"db", "s3"}
)

// Config holds every tunable of the application. Setup builds it once
// at startup and components receive it at construction. It is never
// mutated afterwards.
type Config struct {
	LogLevel string

	Host struct {
		Port   int
		Domain string
	}

	Database struct {
		Driver string
		DSN    string
	}

	JWT struct {
		Secret     string
		ExpiryDays int
	}

	OTP struct {
		ExpiryMinutes int
	}

	Upload struct {
		// In bytes after Setup ran. The config file takes megabytes
		MaxSize int64
	}

	Storage struct {
		Type string
	}

	AWS struct {
		Region          string
		AccessKey       string
		SecretAccessKey string
		Bucket          string
		CloudfrontURL   string
	}

	Mail struct {
		Host     string
		Port     int
		Sender   string
		Password string
	}
}

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() (*Config, error) {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.domain", "host_domain")

	v.BindEnv("database.driver", "database_driver")
	v.BindEnv("database.dsn", "database_dsn")

	v.BindEnv("jwt.secret", "jwt_secret")
	v.BindEnv("jwt.expiry_days", "jwt_expiry_days")

	v.BindEnv("otp.expiry_minutes", "otp_expiry_minutes")

	v.BindEnv("upload.max_size", "upload_max_size")

	v.BindEnv("storage.type", "storage_type")

	v.BindEnv("aws.region", "aws_region")
	v.BindEnv("aws.access_key", "aws_access_key")
	v.BindEnv("aws.secret_access_key", "aws_secret_access_key")
	v.BindEnv("aws.bucket", "aws_bucket")
	v.BindEnv("aws.cloudfront_url", "aws_cloudfront_url")

	v.BindEnv("mail.host", "mail_host")
	v.BindEnv("mail.port", "mail_port")
	v.BindEnv("mail.sender", "mail_sender")
	v.BindEnv("mail.password", "mail_password")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.domain", "localhost")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")

	v.SetDefault("jwt.expiry_days", 7)

	v.SetDefault("upload.max_size", 5)

	v.SetDefault("storage.type", "db")

	v.SetDefault("mail.port", 587)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return nil, errors.New("config.toml file is missing")
		}

		return nil, fmt.Errorf("failed to read config file, %w", err)
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return nil, errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return nil, errors.New("invalid port provided")
	}

	if !slices.Contains(validDrivers, v.GetString("database.driver")) {
		return nil, errors.New("invalid database driver provided")
	}

	if v.GetString("database.dsn") == "" {
		return nil, errors.New("database.dsn can't be empty")
	}

	if v.GetString("jwt.secret") == "" {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	if v.GetInt("jwt.expiry_days") <= 0 {
		return nil, errors.New("jwt.expiry_days must be bigger than 0")
	}

	// No default on purpose. A silently defaulted expiry window is
	// worse than refusing to start
	if !v.IsSet("otp.expiry_minutes") {
		return nil, errors.New("otp.expiry_minutes is missing")
	}

	if v.GetInt("otp.expiry_minutes") <= 0 {
		return nil, errors.New("otp.expiry_minutes must be bigger than 0")
	}

	if v.GetInt("upload.max_size") <= 0 {
		return nil, errors.New("upload.max_size must be bigger than 0")
	}

	if !slices.Contains(validStorageTypes, v.GetString("storage.type")) {
		return nil, errors.New("invalid storage type provided")
	}

	if v.GetString("storage.type") == "s3" {
		if v.GetString("aws.region") == "" {
			return nil, errors.New("aws region can't be empty")
		}
		if v.GetString("aws.access_key") == "" {
			return nil, errors.New("aws access key can't be empty")
		}
		if v.GetString("aws.secret_access_key") == "" {
			return nil, errors.New("aws secret access key can't be empty")
		}
		if v.GetString("aws.bucket") == "" {
			return nil, errors.New("aws bucket can't be empty")
		}
	}

	c := &Config{LogLevel: v.GetString("app.log_level")}

	c.Host.Port = v.GetInt("host.port")
	c.Host.Domain = v.GetString("host.domain")

	c.Database.Driver = v.GetString("database.driver")
	c.Database.DSN = v.GetString("database.dsn")

	c.JWT.Secret = v.GetString("jwt.secret")
	c.JWT.ExpiryDays = v.GetInt("jwt.expiry_days")

	c.OTP.ExpiryMinutes = v.GetInt("otp.expiry_minutes")

	c.Upload.MaxSize = v.GetInt64("upload.max_size") << 20

	c.Storage.Type = v.GetString("storage.type")

	c.AWS.Region = v.GetString("aws.region")
	c.AWS.AccessKey = v.GetString("aws.access_key")
	c.AWS.SecretAccessKey = v.GetString("aws.secret_access_key")
	c.AWS.Bucket = v.GetString("aws.bucket")
	c.AWS.CloudfrontURL = v.GetString("aws.cloudfront_url")

	c.Mail.Host = v.GetString("mail.host")
	c.Mail.Port = v.GetInt("mail.port")
	c.Mail.Sender = v.GetString("mail.sender")
	c.Mail.Password = v.GetString("mail.password")

	return c, nil
}
