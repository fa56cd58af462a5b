package websocket

// AllJobs is the pseudo job ID clients subscribe to for every job's updates.
const AllJobs = "all"
