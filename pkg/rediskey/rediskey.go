package rediskey

import "fmt"

const (
	CampaignProgressPrefix = "campaign:progress"
	SequencePrefix         = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildCampaignProgressKey returns "campaign:progress:{campaignID}"
func BuildCampaignProgressKey(campaignID string) string {
	return NamespaceKey(CampaignProgressPrefix, campaignID)
}

// BuildSequenceKey returns "seq:{prefix}:{day}"
func BuildSequenceKey(prefix, day string) string {
	return fmt.Sprintf("%s:%s:%s", SequencePrefix, prefix, day)
}
