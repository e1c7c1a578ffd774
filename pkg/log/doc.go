/*
Package log provides structured logging for estore using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable levels, and small helper
functions for the common logging patterns used across the storage,
index, and transaction subsystems.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	idxLog := log.WithIndexName("orders-by-customer")
	idxLog.Info().Int("entries", 3).Msg("index entries written")

	txnLog := log.WithTransactionID(txn.ID())
	txnLog.Error().Err(err).Msg("commit check failed")

Component loggers (WithComponent, WithEntityType, WithIndexName,
WithTransactionID) all derive from the package-level Logger set by
Init, so call Init once at process startup before any other package
logs.
*/
package log
