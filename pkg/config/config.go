// Package config wraps viper into the typed configuration registry used at
// startup. Keys are normalised lowercase dotted names. Listeners registered
// for a key prefix fire when a watched file changes that subtree.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/nusrobomaster/autoaim/pkg/logger"
)

// Registry is the process configuration, loaded once at startup.
type Registry struct {
	v *viper.Viper

	mu        sync.Mutex
	listeners map[string][]func(*Registry)
	snapshot  map[string]interface{}
}

// Load reads the YAML file at path and returns the registry.
func Load(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	r := &Registry{
		v:         v,
		listeners: map[string][]func(*Registry){},
	}
	r.snapshot = v.AllSettings()
	return r, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("camera.index", 0)
	v.SetDefault("camera.width", 1280)
	v.SetDefault("camera.height", 1024)
	v.SetDefault("camera.fx", 1600.0)
	v.SetDefault("camera.fy", 1600.0)
	v.SetDefault("camera.cx", 640.0)
	v.SetDefault("camera.cy", 512.0)
	v.SetDefault("imu.device", "/dev/ttyACM0")
	v.SetDefault("imu.baud", 921600)
	v.SetDefault("detector.model", "models/armor.tflite")
	v.SetDefault("detector.confidence", 0.6)
	v.SetDefault("detector.max_ttl", 0.5)
	v.SetDefault("pf.particles", 10000)
	v.SetDefault("predict.default_radius", 0.25)
	v.SetDefault("predict.tol_coeff", 1.0)
	v.SetDefault("predict.t_gimbal", 0.05)
	v.SetDefault("predict.alpha", 0.1)
	v.SetDefault("predict.bullet_speed", 25.0)
	v.SetDefault("serial.device", "/dev/ttyUSB0")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("calib.path", "gimbal_limits.yaml")
	v.SetDefault("logs.level", "info")
}

// OnChange registers fn to run whenever the subtree under key changes.
// Watch must be called for listeners to ever fire.
func (r *Registry) OnChange(key string, fn func(*Registry)) {
	key = normalize(key)
	r.mu.Lock()
	r.listeners[key] = append(r.listeners[key], fn)
	r.mu.Unlock()
}

// Watch starts watching the backing file. Only listeners whose subtree
// actually changed are notified.
func (r *Registry) Watch() {
	r.v.OnConfigChange(func(fsnotify.Event) {
		r.mu.Lock()
		prev := r.snapshot
		r.snapshot = r.v.AllSettings()
		next := r.snapshot
		var fire []func(*Registry)
		for key, fns := range r.listeners {
			if subtreeChanged(prev, next, strings.Split(key, ".")) {
				fire = append(fire, fns...)
			}
		}
		r.mu.Unlock()
		for _, fn := range fire {
			fn(r)
		}
	})
	r.v.WatchConfig()
}

func subtreeChanged(prev, next map[string]interface{}, path []string) bool {
	var a, b interface{} = prev, next
	for _, p := range path {
		am, ok := a.(map[string]interface{})
		if !ok {
			break
		}
		a = am[p]
		bm, ok := b.(map[string]interface{})
		if !ok {
			break
		}
		b = bm[p]
	}
	return fmt.Sprintf("%v", a) != fmt.Sprintf("%v", b)
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// String returns the string value at key.
func (r *Registry) String(key string) string { return r.v.GetString(normalize(key)) }

// Int returns the int value at key.
func (r *Registry) Int(key string) int { return r.v.GetInt(normalize(key)) }

// Float returns the float64 value at key.
func (r *Registry) Float(key string) float64 { return r.v.GetFloat64(normalize(key)) }

// Bool returns the bool value at key.
func (r *Registry) Bool(key string) bool { return r.v.GetBool(normalize(key)) }

// Duration returns the duration value at key.
func (r *Registry) Duration(key string) time.Duration { return r.v.GetDuration(normalize(key)) }

// ApplyLogs pushes the logs subtree into the logging facility.
func (r *Registry) ApplyLogs() error {
	return logger.Configure(r.Logs())
}

// Logs decodes the logs subtree into a logger configuration.
func (r *Registry) Logs() logger.Config {
	cfg := logger.Config{Level: r.String("logs.level")}
	var raw []struct {
		Type string `mapstructure:"type"`
		Path string `mapstructure:"path"`
	}
	if err := r.v.UnmarshalKey("logs.appenders", &raw); err == nil {
		for _, a := range raw {
			cfg.Appenders = append(cfg.Appenders, logger.Appender{Type: a.Type, Path: a.Path})
		}
	}
	return cfg
}
