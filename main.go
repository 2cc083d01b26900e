package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/asset-hub/asset-hub/internal/assetkind"
	"github.com/asset-hub/asset-hub/internal/cleanup"
	"github.com/asset-hub/asset-hub/internal/config"
	"github.com/asset-hub/asset-hub/internal/download"
	"github.com/asset-hub/asset-hub/internal/logging"
	"github.com/asset-hub/asset-hub/internal/proxy"
	"github.com/asset-hub/asset-hub/internal/server"
	"github.com/asset-hub/asset-hub/internal/server/routes"
	"github.com/asset-hub/asset-hub/internal/storage"
	"github.com/asset-hub/asset-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	cleanupMode bool
	dryRun      bool
	expiredOnly bool
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
		fields["allowed_extensions"] = len(cfg.Cdn.AllowedExtensions)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	store, err := storage.NewStore(cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化存储目录失败: %v\n", err)
		return 1
	}
	tracedStore := storage.NewTracedStore(store, logger)

	if opts.cleanupMode {
		return runCleanup(tracedStore, logger, opts)
	}

	kinds := assetkind.Builtin(cfg.Cdn.AllowedExtensions)

	// CLI 启动遵循“配置 → 存储 → 下载器 → 代理 → Fiber server”顺序，
	// 保证所有请求共享统一的存储与下载实例。
	fetcher := download.NewDownloader(download.Options{
		DefaultTTL:         cfg.Global.DefaultTTL.DurationValue(),
		DefaultContentType: cfg.Cdn.DefaultContentType,
		Timeout:            cfg.Global.DownloadTimeout.DurationValue(),
	})

	assetHandler := proxy.NewHandler(tracedStore, fetcher, kinds, proxy.ResponsePolicy{
		EnableETag:         cfg.Cdn.EnableETag,
		MaxAge:             cfg.Cdn.CacheMaxAge.DurationValue(),
		SMaxAge:            cfg.Cdn.CacheSMaxAge.DurationValue(),
		Visibility:         cfg.Cdn.CacheVisibility,
		DefaultContentType: cfg.Cdn.DefaultContentType,
	}, logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage_path"] = cfg.Global.StoragePath
	fields["allowed_extensions"] = len(cfg.Cdn.AllowedExtensions)
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, assetHandler, kinds, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// runCleanup 在 CLI 模式下执行一次存储清理并打印统计结果。
func runCleanup(store storage.Store, logger *logrus.Logger, opts cliOptions) int {
	sweeper := cleanup.NewSweeper(store, logger)
	report, err := sweeper.Run(context.Background(), cleanup.Options{
		DryRun:      opts.dryRun,
		ExpiredOnly: opts.expiredOnly,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "清理失败: %v\n", err)
		return 1
	}

	mode := "deleted"
	if opts.dryRun {
		mode = "would delete"
	}
	fmt.Fprintf(stdOut, "cleanup complete: %s %d, skipped %d\n", mode, report.Deleted, report.Skipped)
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("asset-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag  string
		checkOnly   bool
		showVer     bool
		cleanupMode bool
		dryRun      bool
		expiredOnly bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ASSET_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&cleanupMode, "cleanup", false, "执行一次存储清理后退出")
	fs.BoolVar(&dryRun, "dry-run", false, "清理模式下只统计不删除")
	fs.BoolVar(&expiredOnly, "expired", false, "清理模式下仅删除已过期条目")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ASSET_HUB_CONFIG")
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
		cleanupMode: cleanupMode,
		dryRun:      dryRun,
		expiredOnly: expiredOnly,
	}, nil
}

func startHTTPServer(cfg *config.Config, assets server.AssetHandler, kinds *assetkind.Registry, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Assets:     assets,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterKindRoutes(app, kinds)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
