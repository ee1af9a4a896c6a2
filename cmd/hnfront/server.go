package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/config"
	"github.com/rtemka/hnfront/pkg/session"
	"github.com/rtemka/hnfront/pkg/session/memdb"
	"github.com/rtemka/hnfront/pkg/session/postgres"
	"github.com/rtemka/hnfront/pkg/session/sqlite"
	"github.com/rtemka/hnfront/pkg/web"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	dbRetries     = 5
	retryInterval = 2 * time.Second
	purgeInterval = time.Hour
)

// serve запускает веб-сервер и ждет сигнала остановки.
func serve(ctx context.Context, c config.Config) error {
	zl := zapLogger(os.Stdout, c.LogLevel)
	defer func() {
		_ = zl.Sync()
	}()

	// создание контекста для регулирования
	// закрытие всех подсистем
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := connectSessions(ctx, c.SessionDB, dbRetries, retryInterval, zl)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	api, err := backend.New(c.APIURL, c.APIProxyURL, c.APITimeout)
	if err != nil {
		return err
	}

	app, err := web.New(api, store, zl, web.Options{SessionTTL: c.SessionTTL, CookieSecure: c.CookieSecure})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// ошибка запуска сервера останавливает все приложение
	errc := make(chan error, 1)
	failed := func(err error) {
		errc <- err
		cancel()
	}

	servers := []*http.Server{
		startWebServer(c.WebAddr, app, zl, &wg, failed),
	}
	go purgeLoop(ctx, store, purgeInterval, zl, &wg)

	// логика закрытия сервера
	cancelation(ctx, cancel, zl, servers)

	wg.Wait()

	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

// cancelation отслеживает сигналы прерывания и,
// если они получены, "мягко" отменяет контекст приложения и
// гасит серверы.
func cancelation(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger, servers []*http.Server) {
	// ловим сигналов прерывания, типа CTRL-C
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		defer signal.Stop(stop)

		var sig os.Signal
		select {
		case sig = <-stop: // получили сигнал
		case <-ctx.Done(): // приложение остановлено без сигнала
		}
		sl := logger.Sugar()
		if sig != nil {
			sl.Warnf("got signal %q", sig)
		}

		// закрываем серверы
		for i := range servers {
			ctx, stop := context.WithTimeout(context.Background(), 30*time.Second)
			if err := servers[i].Shutdown(ctx); err != nil {
				sl.Info(err)
			}
			stop()
		}

		cancel() // закрываем контекст приложения
	}()
}

// startWebServer запускает веб-сервер. Если сервер не смог
// работать, ошибка передается в failed.
func startWebServer(addr string, h http.Handler, logger *zap.Logger, wg *sync.WaitGroup, failed func(error)) *http.Server {
	// конфигурируем сервер
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		IdleTimeout:       3 * time.Minute,
		ReadHeaderTimeout: time.Minute,
	}

	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error(err.Error())
			failed(err)
		}
		logger.Warn("server is shut down")
		wg.Done()
	}()
	logger.Info("web server started", zap.String("address", srv.Addr))
	return srv
}

// purgeLoop периодически удаляет истекшие сессии.
func purgeLoop(ctx context.Context, store session.Store, every time.Duration, logger *zap.Logger, wg *sync.WaitGroup) {
	defer wg.Done()

	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := store.Purge(ctx, time.Now())
			if err != nil {
				logger.Error("purge sessions", zap.Error(err))
				continue
			}
			logger.Debug("sessions purged", zap.Int64("deleted", n))
		}
	}
}

// purgeSessions удаляет истекшие сессии один раз.
func purgeSessions(ctx context.Context, c config.Config) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := connectSessions(ctx, c.SessionDB, 1, 0, zap.NewNop())
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = store.Close()
	}()
	return store.Purge(ctx, time.Now())
}

var ErrRetryExceeded = errors.New("connect DB: number of retries exceeded")

// connectSessions открывает хранилище сессий: пустая строка - память,
// postgres:// или postgresql:// - PostgreSQL, иначе файл SQLite.
func connectSessions(ctx context.Context, connstr string, retries int, interval time.Duration, logger *zap.Logger) (session.Store, error) {
	if connstr == "" {
		logger.Warn("sessions are kept in memory and will be lost on restart")
		return memdb.New(), nil
	}

	open := func() (session.Store, error) {
		if strings.HasPrefix(connstr, "postgres://") || strings.HasPrefix(connstr, "postgresql://") {
			return postgres.New(ctx, connstr)
		}
		return sqlite.New(connstr)
	}

	for i := 0; i < retries; i++ {
		db, err := open()
		if err != nil {
			logger.Warn("connect session store", zap.Int("attempt", i+1), zap.Error(err))
			time.Sleep(interval)
			continue
		}
		return db, nil
	}

	return nil, ErrRetryExceeded
}

var encoderCfg = zapcore.EncoderConfig{
	MessageKey: "msg",
	NameKey:    "name",

	LevelKey:    "level",
	EncodeLevel: zapcore.CapitalLevelEncoder,

	CallerKey:    "caller",
	EncodeCaller: zapcore.ShortCallerEncoder,

	TimeKey:    "time",
	EncodeTime: zapcore.RFC3339TimeEncoder,
}

func zapLogger(w io.Writer, level string) *zap.Logger {
	zl := zap.New(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.Lock(zapcore.AddSync(w)),
			parseLevel(level),
		),
		zap.AddCaller(),
	)
	return zl
}

// parseLevel возвращает уровень логирования. Неизвестный уровень - info.
func parseLevel(s string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
