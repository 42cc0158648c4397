package parser

// schemaSource describes a tunnel config document.
// Unknown keys are accepted so that newer provider options pass validation.
const schemaSource = `
#Adapter: {
	id:    string & =~"^[A-Za-z0-9_.-]+$"
	type:  "direct" | "reject" | "http" | "https" | "secure-http" | "socks5" | "ss" | "speed"
	host?: string & !=""
	port?: int & >0 & <65536
	...
}

#Rule: {
	type:     "all" | "list" | "iplist" | "country" | "dnsfail"
	adapter?: string & !=""
	...
}

#Tunnel: {
	port:     int & >0 & <65536
	adapter?: [...#Adapter]
	rule:     [#Rule, ...#Rule]
	...
}
`
