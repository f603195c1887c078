package banner

import (
	"fmt"
)

const banner = `
 ██████╗ █████╗ ██╗   ██╗███████╗███████╗██████╗ ██╗███████╗
██╔════╝██╔══██╗██║   ██║██╔════╝██╔════╝██╔══██╗██║██╔════╝
██║     ███████║██║   ██║███████╗█████╗  ██████╔╝██║█████╗
██║     ██╔══██║██║   ██║╚════██║██╔══╝  ██╔══██╗██║██╔══╝
╚██████╗██║  ██║╚██████╔╝███████║███████╗██║  ██║██║███████╗
 ╚═════╝╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚══════╝╚═╝  ╚═╝╚═╝╚══════╝
`

// Print writes the startup banner with the effective runtime settings.
func Print(addr, dbPath, blobPath, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:    %s\n", addr)
	fmt.Printf("DB Path:   %s\n", dbPath)
	fmt.Printf("Blobs:     %s\n", blobPath)
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST  /v1/contacts/requests      - Send a contact request")
	fmt.Println("POST  /v1/discussions            - Create a discussion (GROUPE/DIFFUSION)")
	fmt.Println("POST  /v1/messages               - Send a message (JSON: discussionId, text)")
	fmt.Println("GET   /v1/messages/search        - Search messages (?discussion=&keyword=)")
	fmt.Println("GET   /healthz · GET /metrics")
	fmt.Println()
}
