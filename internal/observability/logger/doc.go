// Package logger provee el logger Zap singleton de pbauth con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Los componentes reciben un *zap.Logger explícito (adapter.WithLogger);
//     el singleton es el default cuando no se inyecta ninguno.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON, "test"
//     descarta todo.
//   - Levels: debug, info, warn, error (configurable via log.level / PBAUTH_LOG_LEVEL).
//
// # Uso
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.App.Env,
//	    Level: cfg.Log.Level,
//	})
//	defer logger.Sync()
//
// En el adapter:
//
//	log := logger.Named("pbauth")
//	log.Debug("read miss", logger.Op("get"), logger.Entity("user"), logger.RecordID(id))
//
// Emails y tokens nunca se loguean en claro: usar MaskedEmail / MaskedToken.
package logger
