package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/IshaanKalra2103/newsscraper/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	TypeQueue = "queue"
	TypeHTTP  = "http"

	QueueProviderAWSSQS = "aws-sqs"
	QueueProviderAWSSNS = "aws-sns"
	QueueProviderAzure  = "azure"
	QueueProviderGCP    = "gcp"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

type configFile struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig is one sink declared in the publishers file. Categories and
// MinRelevance restrict which stored articles reach the sink.
type PublisherConfig struct {
	ID           string                `json:"id" yaml:"id"`
	Type         string                `json:"type" yaml:"type"`
	Enabled      *bool                 `json:"enabled" yaml:"enabled"`
	Categories   []string              `json:"categories" yaml:"categories"`
	MinRelevance int                   `json:"min_relevance" yaml:"min_relevance"`
	Queue        *QueuePublisherConfig `json:"queue" yaml:"queue"`
	HTTP         *HTTPPublisherConfig  `json:"http" yaml:"http"`
}

type QueuePublisherConfig struct {
	Provider string                 `json:"provider" yaml:"provider"`
	AWS      *AWSSQSPublisherConfig `json:"aws" yaml:"aws"`
	SNS      *AWSSNSPublisherConfig `json:"sns" yaml:"sns"`
	GCP      *GCPQueueConfig        `json:"gcp" yaml:"gcp"`
}

// AWSCredentials are shared by the SQS and SNS sinks. Empty keys fall back to
// the default AWS credential chain.
type AWSCredentials struct {
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

type AWSSQSPublisherConfig struct {
	QueueURL       string `json:"uri" yaml:"uri"`
	AWSCredentials `yaml:",inline"`
}

type AWSSNSPublisherConfig struct {
	TopicARN       string `json:"topic_arn" yaml:"topic_arn"`
	AWSCredentials `yaml:",inline"`
}

type GCPQueueConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	// Endpoint overrides the Pub/Sub API endpoint, e.g. for an emulator.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ConfigRegistry holds the validated sinks from one publishers file. It is
// read-only after LoadRegistry.
type ConfigRegistry struct {
	publishers []PublisherConfig
	idx        map[string]int
}

// LoadRegistry reads a YAML or JSON publishers file. ${VAR} references are
// expanded from the environment before decoding.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	file, err := decodeConfigFile([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(file.Publishers) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	reg := &ConfigRegistry{
		publishers: make([]PublisherConfig, 0, len(file.Publishers)),
		idx:        make(map[string]int, len(file.Publishers)),
	}
	for i, entry := range file.Publishers {
		cfg := sanitizePublisherConfig(entry)
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := reg.idx[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		reg.idx[cfg.ID] = len(reg.publishers)
		reg.publishers = append(reg.publishers, cfg)
	}
	return reg, nil
}

// decodeConfigFile picks the decoder by extension. Files without a known
// extension are read as YAML, which also accepts JSON.
func decodeConfigFile(data []byte, ext string) (configFile, error) {
	var file configFile
	var err error

	switch strings.ToLower(ext) {
	case ".json":
		err = json.Unmarshal(data, &file)
	default:
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return configFile{}, fmt.Errorf("decode publishers file: %w", err)
	}
	return file, nil
}

func sanitizePublisherConfig(cfg PublisherConfig) PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if cfg.Enabled == nil {
		enabled := true
		cfg.Enabled = &enabled
	}

	cats := make([]string, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			cats = append(cats, c)
		}
	}
	cfg.Categories = cats

	if cfg.Queue != nil {
		q := *cfg.Queue
		q.Provider = strings.ToLower(strings.TrimSpace(q.Provider))
		if q.AWS != nil {
			sqs := *q.AWS
			sqs.QueueURL = strings.TrimSpace(sqs.QueueURL)
			sqs.AWSCredentials = sqs.AWSCredentials.trimmed()
			q.AWS = &sqs
		}
		if q.SNS != nil {
			sns := *q.SNS
			sns.TopicARN = strings.TrimSpace(sns.TopicARN)
			sns.AWSCredentials = sns.AWSCredentials.trimmed()
			q.SNS = &sns
		}
		if q.GCP != nil {
			g := *q.GCP
			g.ProjectID = strings.TrimSpace(g.ProjectID)
			g.Topic = strings.TrimSpace(g.Topic)
			g.CredentialsFile = strings.TrimSpace(g.CredentialsFile)
			g.Endpoint = strings.TrimSpace(g.Endpoint)
			q.GCP = &g
		}
		cfg.Queue = &q
	}

	if cfg.HTTP != nil {
		h := *cfg.HTTP
		h.URL = strings.TrimSpace(h.URL)
		h.Method = strings.ToUpper(strings.TrimSpace(h.Method))
		if h.Method == "" {
			h.Method = httpDefaultMethod
		}
		if h.TimeoutSeconds <= 0 {
			h.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		h.Headers = sanitizeHeaders(h.Headers)
		cfg.HTTP = &h
	}
	return cfg
}

func (c AWSCredentials) trimmed() AWSCredentials {
	return AWSCredentials{
		Region:          strings.TrimSpace(c.Region),
		AccessKeyID:     strings.TrimSpace(c.AccessKeyID),
		SecretAccessKey: strings.TrimSpace(c.SecretAccessKey),
	}
}

func (c AWSCredentials) static() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// sanitizeHeaders drops headers whose name or value is blank.
func sanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// field is a named required value used by requireFields.
type field struct {
	name  string
	value string
}

func requireFields(id, section string, fields ...field) error {
	var missing []string
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, section+"."+f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("publisher %q is missing %s", id, strings.Join(missing, ", "))
	}
	return nil
}

func (c AWSCredentials) validate(id, section string) error {
	if err := requireFields(id, section, field{"region", c.Region}); err != nil {
		return err
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("publisher %q: %s.access_key_id and %s.secret_access_key must be set together", id, section, section)
	}
	return nil
}

func (cfg PublisherConfig) validate() error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.MinRelevance < 0 {
		return fmt.Errorf("publisher %q: min_relevance must not be negative", cfg.ID)
	}

	switch cfg.Type {
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("publisher %q: http section is required", cfg.ID)
		}
		return requireFields(cfg.ID, "http", field{"url", cfg.HTTP.URL})
	case TypeQueue:
		return cfg.validateQueue()
	case "":
		return fmt.Errorf("publisher %q: type is required", cfg.ID)
	default:
		return fmt.Errorf("publisher %q: type %q not supported", cfg.ID, cfg.Type)
	}
}

func (cfg PublisherConfig) validateQueue() error {
	q := cfg.Queue
	if q == nil {
		return fmt.Errorf("publisher %q: queue section is required", cfg.ID)
	}

	switch q.Provider {
	case QueueProviderAWSSQS:
		if q.AWS == nil {
			return fmt.Errorf("publisher %q: queue.aws section is required", cfg.ID)
		}
		if err := requireFields(cfg.ID, "aws", field{"uri", q.AWS.QueueURL}); err != nil {
			return err
		}
		return q.AWS.AWSCredentials.validate(cfg.ID, "aws")
	case QueueProviderAWSSNS:
		if q.SNS == nil {
			return fmt.Errorf("publisher %q: queue.sns section is required", cfg.ID)
		}
		if err := requireFields(cfg.ID, "sns", field{"topic_arn", q.SNS.TopicARN}); err != nil {
			return err
		}
		return q.SNS.AWSCredentials.validate(cfg.ID, "sns")
	case QueueProviderGCP:
		if q.GCP == nil {
			return fmt.Errorf("publisher %q: queue.gcp section is required", cfg.ID)
		}
		return requireFields(cfg.ID, "gcp", field{"project_id", q.GCP.ProjectID}, field{"topic", q.GCP.Topic})
	case QueueProviderAzure:
		return fmt.Errorf("publisher %q: queue provider %q not implemented", cfg.ID, q.Provider)
	default:
		return fmt.Errorf("publisher %q: queue provider %q not supported", cfg.ID, q.Provider)
	}
}

// ByID returns the sink config with the given id.
func (r *ConfigRegistry) ByID(id string) (PublisherConfig, bool) {
	if r == nil {
		return PublisherConfig{}, false
	}
	i, ok := r.idx[strings.TrimSpace(id)]
	if !ok {
		return PublisherConfig{}, false
	}
	return r.publishers[i], true
}

// All returns every configured sink in file order.
func (r *ConfigRegistry) All() []PublisherConfig {
	if r == nil {
		return nil
	}
	return append([]PublisherConfig(nil), r.publishers...)
}

// Enabled returns the sinks not switched off with enabled: false.
func (r *ConfigRegistry) Enabled() []PublisherConfig {
	var out []PublisherConfig
	for _, cfg := range r.All() {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// EnabledValue defaults to true when enabled is omitted.
func (cfg PublisherConfig) EnabledValue() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// Matches reports whether a stored article should be sent to this sink.
// An empty category list accepts every category.
func (cfg PublisherConfig) Matches(a domain.StoredArticle) bool {
	if a.RelevanceScore < cfg.MinRelevance {
		return false
	}
	if len(cfg.Categories) == 0 {
		return true
	}
	for _, want := range cfg.Categories {
		for _, got := range a.Categories {
			if want == got {
				return true
			}
		}
	}
	return false
}
