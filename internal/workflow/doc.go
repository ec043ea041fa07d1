// Package workflow orchestrates sessions through the processing pipeline.
//
// A dispatcher polls the session store and admits sessions in creation order.
// Live meeting sessions hold a concurrency slot from joining until the bot
// leaves the call; the remaining stages (transcribe, analyze, summarize,
// report, deliver) run without a slot so a long summarization never blocks a
// new meeting from being joined. Each stage failure is classified and either
// retried with backoff or persisted as a terminal failure.
package workflow
