package version

import "fmt"

// Заполняются при сборке: -ldflags "-X github.com/vladislavdragonenkov/shop/internal/version.version=..."
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// Fields возвращает сведения о сборке в виде пар для структурного лога.
func Fields() map[string]any {
	return map[string]any{"version": version, "commit": commit, "build_date": date}
}

func String() string {
	return fmt.Sprintf("shop-order-service version=%s commit=%s date=%s", version, commit, date)
}
