// Package chunking plans transcript segments into chunks sized for efficient
// downstream provider calls.
//
// Two planners are provided: ChunkByTime bounds chunks by wall-clock span and
// is used to size synthesis units, while ChunkByTokens bounds chunks by
// estimated token count and is used to size translation requests. Both report
// an efficiency summary for logging.
package chunking
