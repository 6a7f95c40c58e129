package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/font-hub/font-hub/internal/catalog"
	"github.com/font-hub/font-hub/internal/config"
	"github.com/font-hub/font-hub/internal/logging"
	"github.com/font-hub/font-hub/internal/manager"
	"github.com/font-hub/font-hub/internal/metrics"
	"github.com/font-hub/font-hub/internal/registry"
	"github.com/font-hub/font-hub/internal/server"
	"github.com/font-hub/font-hub/internal/server/routes"
	"github.com/font-hub/font-hub/internal/storage"
	"github.com/font-hub/font-hub/internal/upstream"
	"github.com/font-hub/font-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

// services 是启动 HTTP 服务所需的全部组件。
type services struct {
	store    storage.Store
	registry *registry.Registry
	metrics  *metrics.Recorder
	manager  *manager.Manager
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["storage_path"] = cfg.Global.StoragePath
		fields["catalog_provider"] = cfg.Global.CatalogProvider
		fields["catalog_url"] = cfg.Global.CatalogURL
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序为“配置 → 存储 → 注册表 → 上游客户端 → 管理器 → Fiber server”，
	// 所有请求共享同一份存储与注册表实例。
	svc, err := buildServices(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage_path"] = svc.store.Root()
	fields["registry_path"] = svc.registry.Path()
	fields["fonts"] = svc.registry.Len()
	fields["catalog_provider"] = cfg.Global.CatalogProvider
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, svc, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildServices 按配置组装存储、注册表、上游客户端与缓存管理器。
func buildServices(cfg *config.Config, logger *logrus.Logger) (*services, error) {
	store, err := storage.NewStore(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}

	// 注册表可以配置在缓存目录之外，因此单独以其所在目录为根构建 store。
	registryStore, err := storage.NewStore(filepath.Dir(cfg.Global.RegistryPath))
	if err != nil {
		return nil, fmt.Errorf("初始化注册表目录失败: %w", err)
	}
	reg, err := registry.Open(registryStore, filepath.Base(cfg.Global.RegistryPath), logger)
	if err != nil {
		return nil, fmt.Errorf("加载注册表失败: %w", err)
	}

	client := upstream.New(cfg)
	recorder := metrics.NewRecorder()
	retry := cfg.Retry()

	mgr, err := manager.New(manager.Options{
		Store:       store,
		Registry:    reg,
		Fetcher:     catalog.NewFetcher(client, cfg.Global.CatalogURL),
		Downloader:  catalog.NewDownloader(client),
		Logger:      logger,
		Metrics:     recorder,
		Retry:       manager.RetryPolicy{MaxRetries: retry.MaxRetries, InitialBackoff: retry.InitialBackoff},
		Concurrency: cfg.Global.MaxConcurrentDownloads,
	})
	if err != nil {
		return nil, err
	}

	return &services{
		store:    store,
		registry: reg,
		metrics:  recorder,
		manager:  mgr,
	}, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("font-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 FONT_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("FONT_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func newHTTPApp(cfg *config.Config, svc *services, logger *logrus.Logger) (*fiber.App, error) {
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterFontRoutes(app, svc.manager, svc.store, logger)
	routes.RegisterCatalogRoutes(app, cfg.Global.CatalogProvider, cfg.Global.CatalogURL)
	routes.RegisterMetricsRoutes(app, svc.metrics)
	return app, nil
}

func startHTTPServer(cfg *config.Config, svc *services, logger *logrus.Logger) error {
	app, err := newHTTPApp(cfg, svc, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.WithField("action", "shutdown").Info("收到退出信号，停止接收新请求")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	port := cfg.Global.ListenPort
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
