// Package telemetry persists error logs and token usage to Parquet files.
package telemetry
