package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法（包括未知 backend 类型）。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是默认配置文件名；同目录下的 playproxy.local.json5 覆盖它。
	FileName = "playproxy.json5"
	// EnvFileName 是可选的 dotenv 文件名（相对 cwd）。
	EnvFileName = ".env"
)

const (
	BackendAPI     = "api"
	BackendScraper = "scraper"

	DefaultBackend         = BackendAPI
	DefaultMaxLoginRetries = 10
	DefaultCacheMaxAge     = 24 * time.Hour
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 5000
	DefaultCORSOrigin      = "http://localhost:?.*"
	DefaultBaseURL         = "https://play.google.com"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// 环境变量名。
const (
	EnvBackend         = "API_TYPE"
	EnvUsername        = "GOOGLE_USERNAME"
	EnvPassword        = "GOOGLE_PASSWORD"
	EnvAndroidID       = "ANDROID_ID"
	EnvMaxLoginRetries = "MAX_LOGIN_RETRIES"
	EnvMaxCacheAge     = "MAX_CACHE_AGE" // 秒
	EnvHost            = "HTTP_HOST"
	EnvPort            = "HTTP_PORT"
	EnvCORSOrigins     = "CORS_ORIGINS" // 逗号分隔的正则
	EnvRemoteURL       = "REMOTE_URL"
	EnvCacheDir        = "CACHE_DIR"
	EnvOTLPEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// CLIArgs 保留“是否显式指定”的信息：CLI 只覆盖显式给出的项。
type CLIArgs struct {
	// ConfigPath 非空时必须存在；为空时读取 <cwd>/playproxy.json5（可选）。
	ConfigPath string

	Backend    string
	BackendSet bool

	Host    string
	HostSet bool

	Port    int
	PortSet bool

	CacheDir    string
	CacheDirSet bool

	LogLevel    string
	LogLevelSet bool
}

// FileConfig 对应 playproxy.json5 的解析结构。
// 嵌套结构用值类型，便于 mergo 逐字段合并 .local 覆盖。
type FileConfig struct {
	Backend           string            `json:"backend"`
	Credentials       CredentialsConfig `json:"credentials"`
	MaxLoginRetries   *int              `json:"max_login_retries"` // nil 表示未设置；显式 0 交给校验拒绝
	RemoteURL         string            `json:"remote_url"`
	BaseURL           string            `json:"base_url"`
	Cache             CacheConfig       `json:"cache"`
	HTTP              HTTPConfig        `json:"http"`
	Proxy             ProxyConfig       `json:"proxy"`
	RequestsPerSecond float64           `json:"requests_per_second"`
	Log               LogConfig         `json:"log"`
	Telemetry         TelemetryConfig   `json:"telemetry"`
}

type CredentialsConfig struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	AndroidID string `json:"android_id"`
}

type CacheConfig struct {
	Dir string `json:"dir"`
	// MaxAge 单位为秒；0 表示使用默认值。
	MaxAge int64 `json:"max_age"`
}

type HTTPConfig struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type TelemetryConfig struct {
	OTLPEndpoint string            `json:"otlp_endpoint"`
	Headers      map[string]string `json:"headers"`
}

// EffectiveConfig 是合并并规范化后的最终配置。
type EffectiveConfig struct {
	Backend string

	Email     string
	Password  string
	AndroidID string

	MaxLoginRetries int
	RemoteURL       string
	BaseURL         string

	CacheDir string
	CacheTTL time.Duration

	Host        string
	Port        int
	CORSOrigins []string

	ProxyURL          string
	RequestsPerSecond float64

	LogLevel  string
	LogFormat string

	OTLPEndpoint string
	OTLPHeaders  map[string]string

	// Sources 记录实际读取到的文件（用于日志）。
	Sources []string
}

// Addr 返回 HTTP 监听地址。
func (c EffectiveConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件、dotenv 与环境变量，然后与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：CLI > 进程环境变量 > <cwd>/.env > <name>.local.json5 > <name>.json5 > 默认值。
// 进程环境变量通过 lookup 读取（通常是 os.LookupEnv）。
func LoadEffective(cwd string, cli CLIArgs, lookup func(string) (string, bool)) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		required = true
	}

	fc, sources, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if required && len(sources) == 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	envPath := filepath.Join(cwdAbs, EnvFileName)
	dotenv, err := readDotenv(envPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: envPath, Err: err}
	}
	if dotenv != nil {
		sources = append(sources, envPath)
	}

	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	eff, err := merge(fc, env, cli)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.Sources = sources
	return eff, nil
}

func merge(fc FileConfig, env func(string) (string, bool), cli CLIArgs) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		Backend:           firstNonEmpty(fc.Backend, DefaultBackend),
		Email:             fc.Credentials.Email,
		Password:          fc.Credentials.Password,
		AndroidID:         fc.Credentials.AndroidID,
		MaxLoginRetries:   DefaultMaxLoginRetries,
		RemoteURL:         strings.TrimSpace(fc.RemoteURL),
		BaseURL:           firstNonEmpty(fc.BaseURL, DefaultBaseURL),
		CacheDir:          strings.TrimSpace(fc.Cache.Dir),
		CacheTTL:          time.Duration(fc.Cache.MaxAge) * time.Second,
		Host:              firstNonEmpty(fc.HTTP.Host, DefaultHost),
		Port:              fc.HTTP.Port,
		CORSOrigins:       append([]string(nil), fc.HTTP.CORSOrigins...),
		ProxyURL:          strings.TrimSpace(fc.Proxy.URL),
		RequestsPerSecond: fc.RequestsPerSecond,
		LogLevel:          firstNonEmpty(fc.Log.Level, DefaultLogLevel),
		LogFormat:         firstNonEmpty(fc.Log.Format, DefaultLogFormat),
		OTLPEndpoint:      strings.TrimSpace(fc.Telemetry.OTLPEndpoint),
		OTLPHeaders:       fc.Telemetry.Headers,
	}
	if fc.MaxLoginRetries != nil {
		eff.MaxLoginRetries = *fc.MaxLoginRetries
	}
	if fc.Cache.MaxAge == 0 {
		eff.CacheTTL = DefaultCacheMaxAge
	}

	// 环境变量覆盖文件。
	if v, ok := env(EnvBackend); ok && strings.TrimSpace(v) != "" {
		eff.Backend = strings.TrimSpace(v)
	}
	if v, ok := env(EnvUsername); ok {
		eff.Email = v
	}
	if v, ok := env(EnvPassword); ok {
		eff.Password = v
	}
	if v, ok := env(EnvAndroidID); ok {
		eff.AndroidID = v
	}
	if v, ok := env(EnvMaxLoginRetries); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return EffectiveConfig{}, fmt.Errorf("%s 不是整数：%q", EnvMaxLoginRetries, v)
		}
		eff.MaxLoginRetries = n
	}
	if v, ok := env(EnvMaxCacheAge); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return EffectiveConfig{}, fmt.Errorf("%s 不是整数秒：%q", EnvMaxCacheAge, v)
		}
		eff.CacheTTL = time.Duration(n) * time.Second
	}
	if v, ok := env(EnvHost); ok && strings.TrimSpace(v) != "" {
		eff.Host = strings.TrimSpace(v)
	}
	if v, ok := env(EnvPort); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return EffectiveConfig{}, fmt.Errorf("%s 不是整数：%q", EnvPort, v)
		}
		eff.Port = n
	}
	if v, ok := env(EnvCORSOrigins); ok {
		eff.CORSOrigins = splitList(v)
	}
	if v, ok := env(EnvRemoteURL); ok {
		eff.RemoteURL = strings.TrimSpace(v)
	}
	if v, ok := env(EnvCacheDir); ok {
		eff.CacheDir = strings.TrimSpace(v)
	}
	if v, ok := env(EnvOTLPEndpoint); ok {
		eff.OTLPEndpoint = strings.TrimSpace(v)
	}

	// CLI 覆盖一切。
	if cli.BackendSet {
		eff.Backend = strings.TrimSpace(cli.Backend)
	}
	if cli.HostSet {
		eff.Host = strings.TrimSpace(cli.Host)
	}
	if cli.PortSet {
		eff.Port = cli.Port
	}
	if cli.CacheDirSet {
		eff.CacheDir = strings.TrimSpace(cli.CacheDir)
	}
	if cli.LogLevelSet {
		eff.LogLevel = strings.TrimSpace(cli.LogLevel)
	}

	// 默认值。
	if eff.Port == 0 {
		eff.Port = DefaultPort
	}
	if len(eff.CORSOrigins) == 0 {
		eff.CORSOrigins = []string{DefaultCORSOrigin}
	}
	if eff.CacheDir == "" {
		eff.CacheDir = filepath.Join(os.TempDir(), "playproxy")
	}

	if err := validate(eff); err != nil {
		return EffectiveConfig{}, err
	}
	return eff, nil
}

func validate(eff EffectiveConfig) error {
	switch eff.Backend {
	case BackendAPI, BackendScraper:
	case "":
		return fmt.Errorf("backend 不能为空")
	default:
		return fmt.Errorf("backend 只能是 %s 或 %s，实际是 %q", BackendAPI, BackendScraper, eff.Backend)
	}
	if eff.MaxLoginRetries < 1 {
		return fmt.Errorf("max_login_retries 必须 >= 1，实际是 %d", eff.MaxLoginRetries)
	}
	if eff.Port < 1 || eff.Port > 65535 {
		return fmt.Errorf("port 超出范围：%d", eff.Port)
	}
	if eff.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second 不能为负：%v", eff.RequestsPerSecond)
	}
	for _, o := range eff.CORSOrigins {
		if _, err := regexp.Compile(o); err != nil {
			return fmt.Errorf("cors origin 不是合法正则 %q：%w", o, err)
		}
	}
	for name, raw := range map[string]string{
		"base_url":      eff.BaseURL,
		"remote_url":    eff.RemoteURL,
		"proxy.url":     eff.ProxyURL,
		"otlp_endpoint": eff.OTLPEndpoint,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s 无效：%q", name, raw)
		}
	}
	return nil
}

// readFileConfig 读取 <name>.json5 并用 <name>.local.json5 覆盖。
// 返回实际读取到的文件列表；两者都不存在不算错误。
func readFileConfig(path string) (FileConfig, []string, error) {
	var (
		out     FileConfig
		sources []string
	)

	ok, err := readJSON5(path, &out)
	if err != nil {
		return FileConfig{}, nil, err
	}
	if ok {
		sources = append(sources, path)
	}

	localPath := localName(path)
	var override FileConfig
	ok, err = readJSON5(localPath, &override)
	if err != nil {
		return FileConfig{}, nil, fmt.Errorf("%s：%w", localPath, err)
	}
	if ok {
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return FileConfig{}, nil, err
		}
		sources = append(sources, localPath)
	}
	return out, sources, nil
}

func readJSON5(path string, out any) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return true, nil
	}
	if err := json5.Unmarshal(b, out); err != nil {
		return true, err
	}
	return true, nil
}

// localName 把 dir/name.ext 变为 dir/name.local.ext。
func localName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// readDotenv 读取 dotenv 文件；不存在返回 nil map。
// 只读取为 map，不修改进程环境。
func readDotenv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return godotenv.Read(path)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
