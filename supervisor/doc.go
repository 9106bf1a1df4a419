// Package supervisor implements the bridge's outer loop from
// spec.md §4.6: open the MQTT surface with a retained last-will, start
// the Health Monitor, open every configured ProxyLink with infinite
// retry, run vendor setup, wait for a restart request, tear down, and
// loop.
//
// Grounded on proxyapi.Link's Open/reconnectMonitor shape for the
// open-until-ready policy (5s → 30s, ×1.5) and on retry.Do itself (the Proxy Link's
// own "infinite retry with backoff" step, generalized to the whole
// open-proxies phase).
package supervisor
