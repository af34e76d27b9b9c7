package config

import "time"

// Logger configures the zap-backed subsystem loggers.
type Logger struct {
	Dir        string `json:"dir" mapstructure:"dir" yaml:"dir" default:"/tmp/docrepo"`
	File       string `json:"file" mapstructure:"file" yaml:"file"`
	Level      string `json:"level" mapstructure:"level" yaml:"level" default:"info"`
	Format     string `json:"format" mapstructure:"format" yaml:"format" default:"json"`
	MaxAge     int    `json:"max_age" mapstructure:"max_age" yaml:"max_age" default:"7"`
	MaxSize    int    `json:"max_size" mapstructure:"max_size" yaml:"max_size" default:"100"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups" yaml:"max_backups" default:"3"`
}

func (l *Logger) setDefault() { setSectionDefault(l) }

// Mongo configures the mongo client built by mongo.Dial.
type Mongo struct {
	URI            string        `json:"uri" mapstructure:"uri" yaml:"uri" default:"mongodb://127.0.0.1:27017"`
	Database       string        `json:"database" mapstructure:"database" yaml:"database" default:"docrepo"`
	Username       string        `json:"username" mapstructure:"username" yaml:"username"`
	Password       string        `json:"password" mapstructure:"password" yaml:"password"`
	ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout" yaml:"connect_timeout"`
	MaxPoolSize    uint64        `json:"max_pool_size" mapstructure:"max_pool_size" yaml:"max_pool_size" default:"100"`
}

func (m *Mongo) setDefault() {
	setSectionDefault(m)
	if m.ConnectTimeout == 0 {
		m.ConnectTimeout = 10 * time.Second
	}
}

// Firestore configures the firestore client built by firestore.Dial.
type Firestore struct {
	ProjectID       string `json:"project_id" mapstructure:"project_id" yaml:"project_id"`
	DatabaseID      string `json:"database_id" mapstructure:"database_id" yaml:"database_id" default:"(default)"`
	CredentialsFile string `json:"credentials_file" mapstructure:"credentials_file" yaml:"credentials_file"`
}

func (f *Firestore) setDefault() { setSectionDefault(f) }

// Repository carries library-wide defaults applied when a repository is
// constructed without an explicit choice.
type Repository struct {
	SoftDelete    bool   `json:"soft_delete" mapstructure:"soft_delete" yaml:"soft_delete"`
	Timestamps    bool   `json:"timestamps" mapstructure:"timestamps" yaml:"timestamps" default:"true"`
	Versioning    bool   `json:"versioning" mapstructure:"versioning" yaml:"versioning"`
	TraceStrategy string `json:"trace_strategy" mapstructure:"trace_strategy" yaml:"trace_strategy" default:"latest"`
	TraceLimit    int    `json:"trace_limit" mapstructure:"trace_limit" yaml:"trace_limit" default:"10"`
}

func (r *Repository) setDefault() { setSectionDefault(r) }
