package config

type Storage struct {
	Driver      string `mapstructure:"SPECIMEN_STORAGE_DRIVER" default:"sqlite"`
	SQLitePath  string `mapstructure:"SPECIMEN_SQLITE_PATH" default:"specimentrack.db"`
	PostgresDSN string `mapstructure:"SPECIMEN_POSTGRES_DSN"`
}

type Blob struct {
	Driver            string `mapstructure:"SPECIMEN_BLOB_DRIVER" default:"fs"`
	FSRoot            string `mapstructure:"SPECIMEN_BLOB_FS_ROOT" default:"./blobdata"`
	S3Bucket          string `mapstructure:"SPECIMEN_BLOB_S3_BUCKET"`
	S3Region          string `mapstructure:"SPECIMEN_BLOB_S3_REGION" default:"us-east-1"`
	S3Endpoint        string `mapstructure:"SPECIMEN_BLOB_S3_ENDPOINT"`
	S3PathStyle       bool   `mapstructure:"SPECIMEN_BLOB_S3_PATH_STYLE" default:"false"`
	S3AccessKeyID     string `mapstructure:"SPECIMEN_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `mapstructure:"SPECIMEN_BLOB_S3_SECRET_ACCESS_KEY"`
}

type Codec struct {
	Secret string `mapstructure:"SPECIMEN_ID_SECRET" default:"USING THE DEFAULT IS NOT SECURE!"`
}

type Log struct {
	LogPath  string `mapstructure:"SPECIMEN_LOG_PATH"`
	LogLevel string `mapstructure:"SPECIMEN_LOG_LEVEL" default:"info"`
}

type Metrics struct {
	Textfile string `mapstructure:"SPECIMEN_METRICS_TEXTFILE"`
}

type Rules struct {
	StrictTypes bool `mapstructure:"SPECIMEN_STRICT_TYPES" default:"false"`
}
