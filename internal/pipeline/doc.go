// Package pipeline moves datapoints from connection callbacks into storage
// and fans topic updates back out on the event bus. It absorbs receive
// bursts so storage latency never stalls a protocol loop.
//
// Two single-consumer queues decouple the stages. dataQueue is a large
// bounded channel fed by the DataReceived subscription (and Enqueue);
// writes never block, a full queue drops the newest datapoint with a
// warning and a counter. Its one reader, the batcher, accumulates up to a
// batch size or a flush interval, writes the whole batch to realtime
// storage and the verified subset to historical storage (in that order),
// and retries retryable storage errors with exponential backoff before
// dropping the batch.
//
// Topics the batcher has not seen before go onto newTopicQueue. Its one
// reader persists an unverified TopicConfiguration per topic and publishes
// TopicAdded (plus one BulkTopicsAdded per multi-topic chunk). Only after a
// topic is announced this way does the batcher publish TopicDataUpdated for
// it, at most PublishLimit per flush with the remainder folded into later
// flushes, so per topic TopicAdded always precedes the first
// TopicDataUpdated and a wide burst cannot overload subscribers.
//
// Maintenance loops refresh the verified-topics snapshot and apply the
// retention policy through the optional Cleaner and Archiver capabilities.
// Shutdown drains both queues under a bounded deadline and reports what it
// had to drop.
package pipeline
