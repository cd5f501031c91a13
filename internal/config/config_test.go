package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// envMap 返回一个只读取 m 的 lookup，避免测试依赖进程环境。
func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{}, envMap(nil))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Backend != BackendAPI {
		t.Fatalf("期望 backend=%q，实际=%q", BackendAPI, eff.Backend)
	}
	if eff.MaxLoginRetries != DefaultMaxLoginRetries {
		t.Fatalf("期望 max_login_retries=%d，实际=%d", DefaultMaxLoginRetries, eff.MaxLoginRetries)
	}
	if eff.CacheTTL != 24*time.Hour {
		t.Fatalf("期望 cache ttl=24h，实际=%v", eff.CacheTTL)
	}
	if eff.Addr() != "127.0.0.1:5000" {
		t.Fatalf("期望 addr=127.0.0.1:5000，实际=%q", eff.Addr())
	}
	if len(eff.CORSOrigins) != 1 || eff.CORSOrigins[0] != DefaultCORSOrigin {
		t.Fatalf("期望默认 CORS origin，实际=%v", eff.CORSOrigins)
	}
	if eff.BaseURL != DefaultBaseURL {
		t.Fatalf("期望 base_url=%q，实际=%q", DefaultBaseURL, eff.BaseURL)
	}
	if len(eff.Sources) != 0 {
		t.Fatalf("没有任何配置文件时 Sources 应为空：%v", eff.Sources)
	}
}

func TestLoadEffective_JSON5FileAndLocalOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
		// 注释与尾逗号都允许
		backend: "scraper",
		cache: { dir: "/var/cache/pp", max_age: 60 },
		http: { host: "0.0.0.0", port: 8080, cors_origins: ["https://a\\.example"] },
		credentials: { email: "base@example.com", password: "base" },
	}`))
	writeFile(t, filepath.Join(cwd, "playproxy.local.json5"), []byte(`{
		http: { port: 9090 },
		credentials: { password: "local" },
	}`))

	eff, err := LoadEffective(cwd, CLIArgs{}, envMap(nil))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Backend != BackendScraper {
		t.Fatalf("期望 backend=scraper，实际=%q", eff.Backend)
	}
	if eff.CacheDir != "/var/cache/pp" || eff.CacheTTL != time.Minute {
		t.Fatalf("cache 配置不符合预期：dir=%q ttl=%v", eff.CacheDir, eff.CacheTTL)
	}
	// local 只覆盖它给出的字段。
	if eff.Addr() != "0.0.0.0:9090" {
		t.Fatalf("期望 addr=0.0.0.0:9090，实际=%q", eff.Addr())
	}
	if eff.Email != "base@example.com" || eff.Password != "local" {
		t.Fatalf("credentials 合并不符合预期：email=%q password=%q", eff.Email, eff.Password)
	}
	if len(eff.Sources) != 2 {
		t.Fatalf("期望读取两个文件，实际=%v", eff.Sources)
	}
}

func TestLoadEffective_Precedence(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{backend: "api", http: {port: 1111}, max_login_retries: 3}`))
	writeFile(t, filepath.Join(cwd, EnvFileName), []byte("HTTP_PORT=2222\nGOOGLE_USERNAME=dotenv@example.com\nMAX_LOGIN_RETRIES=4\n"))

	// .env 覆盖文件。
	eff, err := LoadEffective(cwd, CLIArgs{}, envMap(nil))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Port != 2222 || eff.Email != "dotenv@example.com" || eff.MaxLoginRetries != 4 {
		t.Fatalf(".env 应覆盖文件：port=%d email=%q retries=%d", eff.Port, eff.Email, eff.MaxLoginRetries)
	}

	// 进程环境覆盖 .env。
	env := envMap(map[string]string{"HTTP_PORT": "3333", "API_TYPE": "scraper"})
	eff, err = LoadEffective(cwd, CLIArgs{}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Port != 3333 || eff.Backend != BackendScraper {
		t.Fatalf("环境变量应覆盖 .env：port=%d backend=%q", eff.Port, eff.Backend)
	}
	if eff.Email != "dotenv@example.com" {
		t.Fatalf("未被环境变量覆盖的 .env 值应保留：%q", eff.Email)
	}

	// CLI 覆盖一切。
	eff, err = LoadEffective(cwd, CLIArgs{Port: 4444, PortSet: true, Backend: "api", BackendSet: true}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Port != 4444 || eff.Backend != BackendAPI {
		t.Fatalf("CLI 应覆盖环境变量：port=%d backend=%q", eff.Port, eff.Backend)
	}
}

func TestLoadEffective_EnvValues(t *testing.T) {
	cwd := t.TempDir()
	env := envMap(map[string]string{
		"MAX_CACHE_AGE":   "0",
		"CORS_ORIGINS":    "https://a\\.example, http://localhost:?.*",
		"GOOGLE_PASSWORD": "pw",
		"ANDROID_ID":      "3f1c",
	})

	eff, err := LoadEffective(cwd, CLIArgs{}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.CacheTTL != 0 {
		t.Fatalf("MAX_CACHE_AGE=0 应得到 ttl=0（总是过期），实际=%v", eff.CacheTTL)
	}
	if len(eff.CORSOrigins) != 2 || eff.CORSOrigins[1] != "http://localhost:?.*" {
		t.Fatalf("CORS_ORIGINS 拆分不符合预期：%v", eff.CORSOrigins)
	}
	if eff.Password != "pw" || eff.AndroidID != "3f1c" {
		t.Fatalf("凭据未从环境变量读取：password=%q android=%q", eff.Password, eff.AndroidID)
	}
}

func TestLoadEffective_InvalidBackend(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{}, envMap(map[string]string{"API_TYPE": "grpc"}))
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_InvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"retries not int": {"MAX_LOGIN_RETRIES": "ten"},
		"retries neg":     {"MAX_LOGIN_RETRIES": "-1"},
		"retries zero":    {"MAX_LOGIN_RETRIES": "0"},
		"port range":      {"HTTP_PORT": "70000"},
		"bad regex":       {"CORS_ORIGINS": "http://(unclosed"},
		"bad remote":      {"REMOTE_URL": "not a url"},
		"cache age":       {"MAX_CACHE_AGE": "1d"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadEffective(t.TempDir(), CLIArgs{}, envMap(env))
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoadEffective_FileZeroRetriesRejected(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{max_login_retries: 0}`))

	_, err := LoadEffective(cwd, CLIArgs{}, envMap(nil))
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("显式 0 次重试应被拒绝，实际 err=%v (code=%q)", err, Code(err))
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "missing.json5"}, envMap(nil))
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_ExplicitConfigPath(t *testing.T) {
	cwd := t.TempDir()
	dir := filepath.Join(cwd, "etc")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(dir, "pp.json5"), []byte(`{backend: "scraper"}`))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: "etc/pp.json5"}, envMap(nil))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Backend != BackendScraper {
		t.Fatalf("期望 backend=scraper，实际=%q", eff.Backend)
	}
}

func TestLoadEffective_InvalidJSON5(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{`))

	_, err := LoadEffective(cwd, CLIArgs{}, envMap(nil))
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
