// Package kkex implements the Exchange interface for the KKEX spot exchange.
// Public market data is read from the v1 REST API; account calls go through
// the v2 API and are signed with an MD5 digest over the sorted parameters.
//
// KKEX API Documentation: https://kkex.com/api_wiki/cn/
package kkex
