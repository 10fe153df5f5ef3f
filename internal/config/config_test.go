// Package config provides configuration management for chorus.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir     string
	origHomeDir string
}

func (s *ConfigSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "config-test-*")
	s.Require().NoError(err)

	// Save and override HOME
	s.origHomeDir = os.Getenv("HOME")
	os.Setenv("HOME", s.tempDir)
	SetDataDir("")

	for _, key := range []string{"BLUESKY_HANDLE", "BLUESKY_APP_PASSWORD", "OPENAI_API_KEY", "BLUESKY_PDS_HOST"} {
		os.Unsetenv(key)
	}
}

func (s *ConfigSuite) TearDownTest() {
	os.Setenv("HOME", s.origHomeDir)
	os.RemoveAll(s.tempDir)
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultWorkerPort, cfg.WorkerPort)
	s.Equal(DefaultPDSHost, cfg.PDSHost)
	s.Equal(DefaultEmbeddingModel, cfg.EmbeddingModel)
	s.Equal(DefaultChatModel, cfg.ChatModel)
	s.Equal(0.2, cfg.SimilarityThreshold)
	s.Equal(3, cfg.MinGroupSize)
	s.Equal(DefaultMaxPostLength, cfg.MaxPostLength)
	s.Equal(DefaultAnnotationPrefix, cfg.AnnotationPrefix)
	s.Equal(300, cfg.PollIntervalSec)
	s.Equal(50, cfg.MentionFetchLimit)
	s.Equal(4, cfg.MaxConns)
}

func (s *ConfigSuite) TestDataDir() {
	s.Contains(DataDir(), ".chorus")
}

func (s *ConfigSuite) TestDBPath() {
	s.Contains(DBPath(), "chorus.db")
}

func (s *ConfigSuite) TestSettingsPath() {
	s.Contains(SettingsPath(), "settings.json")
}

func (s *ConfigSuite) TestSetDataDirRelocatesAllPaths() {
	alt := filepath.Join(s.tempDir, "alt-data")
	SetDataDir(alt)

	s.Equal(alt, DataDir())
	s.Equal(filepath.Join(alt, "chorus.db"), DBPath())
	s.Equal(filepath.Join(alt, "settings.json"), SettingsPath())

	s.Require().NoError(EnsureAll())
	_, err := os.Stat(filepath.Join(alt, "settings.json"))
	s.NoError(err)

	SetDataDir("")
	s.Contains(DataDir(), ".chorus")
}

func (s *ConfigSuite) TestEnsureAllCreatesSettings() {
	s.Require().NoError(EnsureAll())

	info, err := os.Stat(SettingsPath())
	s.Require().NoError(err)
	s.False(info.IsDir())
}

func (s *ConfigSuite) TestLoadWithoutSettingsFileUsesDefaults() {
	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(Default().WorkerPort, cfg.WorkerPort)
}

func (s *ConfigSuite) TestLoadAppliesFileAndEnvOverrides() {
	s.Require().NoError(EnsureDataDir())
	s.Require().NoError(os.WriteFile(SettingsPath(),
		[]byte(`{"handle":"file.example.com","min_group_size":5,"similarity_threshold":0.4}`), 0o644))

	os.Setenv("BLUESKY_HANDLE", "env.example.com")
	os.Setenv("BLUESKY_APP_PASSWORD", "xxxx-yyyy")
	os.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	s.Require().NoError(err)

	s.Equal("env.example.com", cfg.Handle)
	s.Equal("xxxx-yyyy", cfg.AppPassword)
	s.Equal(5, cfg.MinGroupSize)
	s.Equal(0.4, cfg.SimilarityThreshold)
	s.NoError(cfg.Validate())
}

func (s *ConfigSuite) TestValidateMissingCredentials() {
	cfg := Default()

	err := cfg.Validate()
	s.Require().Error(err)
	s.Contains(err.Error(), "handle")
	s.Contains(err.Error(), "app password")
	s.Contains(err.Error(), "API key")
}

func (s *ConfigSuite) TestValidateRejectsBadPolicy() {
	cfg := Default()
	cfg.Handle = "h"
	cfg.AppPassword = "p"
	cfg.OpenAIKey = "k"

	cfg.SimilarityThreshold = 1.5
	s.Error(cfg.Validate())

	cfg.SimilarityThreshold = 0.2
	cfg.MinGroupSize = 0
	s.Error(cfg.Validate())

	cfg.MinGroupSize = 3
	cfg.MaxPostLength = 1
	s.Error(cfg.Validate())
}

func (s *ConfigSuite) TestSecretsNeverSerialized() {
	s.Require().NoError(EnsureAll())

	data, err := os.ReadFile(SettingsPath())
	s.Require().NoError(err)
	s.NotContains(string(data), "app_password")
	s.NotContains(string(data), "openai")
}
