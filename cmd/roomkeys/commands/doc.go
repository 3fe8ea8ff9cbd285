// Package commands defines the roomkeys CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init-backup        Create the backup key and print its public half
//   - receive-key        Store an m.room_key received from the session creator
//   - receive-forwarded  Store an m.forwarded_room_key
//   - decrypt            Decrypt an m.room.encrypted event
//   - import             Import a key export file
//   - export             Write every session to a key export file
//   - backup             Encrypt sessions not yet backed up into a backup file
//   - restore            Restore sessions from a backup file
//   - verify             Check the MACs of a backup file
//   - list               List stored sessions
//   - serve-metrics      Serve Prometheus metrics over HTTP
//
// # Implementation
//
// The root command loads Config, builds the logger and opens the store
// before any subcommand runs, so handlers share one app context. The store is
// closed after the subcommand returns.
package commands
