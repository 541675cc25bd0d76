package limits

import "time"

// Ids of the built-in limiters.
const (
	BackupAuthCheck              = "backupAuthCheck"
	Pin                          = "pin"
	AttachmentCreate             = "attachmentCreate"
	BackupAttachmentCreate       = "backupAttachmentCreate"
	PreKeys                      = "prekeys"
	Messages                     = "messages"
	Stories                      = "stories"
	AllocateDevice               = "allocateDevice"
	VerifyDevice                 = "verifyDevice"
	Profile                      = "profile"
	StickerPack                  = "stickerPack"
	UsernameLookup               = "usernameLookup"
	UsernameSet                  = "usernameSet"
	UsernameReserve              = "usernameReserve"
	UsernameLinkOperation        = "usernameLinkOperation"
	UsernameLinkLookupPerIP      = "usernameLinkLookupPerIp"
	CheckAccountExistence        = "checkAccountExistence"
	Registration                 = "registration"
	VerificationPushChallenge    = "verificationPushChallenge"
	VerificationCaptcha          = "verificationCaptcha"
	RateLimitReset               = "rateLimitReset"
	CaptchaChallengeAttempt      = "captchaChallengeAttempt"
	CaptchaChallengeSuccess      = "captchaChallengeSuccess"
	SetBackupID                  = "setBackupId"
	SetPaidMediaBackupID         = "setPaidMediaBackupId"
	PushChallengeAttempt         = "pushChallengeAttempt"
	PushChallengeSuccess         = "pushChallengeSuccess"
	GetCallingRelays             = "getCallingRelays"
	CreateCallLink               = "createCallLink"
	InboundMessageBytes          = "inboundMessageBytes"
	ExternalServiceCredentials   = "externalServiceCredentials"
	KeyTransparencyDistinguished = "keyTransparencyDistinguished"
	KeyTransparencySearch        = "keyTransparencySearch"
	KeyTransparencyMonitor       = "keyTransparencyMonitor"
	WaitForLinkedDevice          = "waitForLinkedDevice"
	UploadTransferArchive        = "uploadTransferArchive"
	WaitForTransferArchive       = "waitForTransferArchive"
	RecordDeviceTransferRequest  = "recordDeviceTransferRequest"
	WaitForDeviceTransferRequest = "waitForDeviceTransferRequest"
	DeviceCheckChallenge         = "deviceCheckChallenge"
)

func bucket(capacity int64, period time.Duration, failOpen bool) BucketConfig {
	return BucketConfig{Capacity: capacity, RefillPeriod: period, FailOpen: failOpen}
}

// DefaultDescriptors returns the built-in limiter table. The slice is fresh
// on every call.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{ID: BackupAuthCheck, Default: bucket(100, 15*time.Minute, true)},
		{ID: Pin, Default: bucket(10, 24*time.Hour, false)},
		{ID: AttachmentCreate, Default: bucket(50, 1200*time.Millisecond, true)},
		{ID: BackupAttachmentCreate, Dynamic: true, Default: bucket(10_000, time.Second, true)},
		{ID: PreKeys, Default: bucket(6, 10*time.Minute, false)},
		{ID: Messages, Default: bucket(60, time.Second, true)},
		{ID: Stories, Default: bucket(5_000, 8*time.Second, true)},
		{ID: AllocateDevice, Default: bucket(6, 2*time.Minute, false)},
		{ID: VerifyDevice, Default: bucket(6, 2*time.Minute, false)},
		{ID: Profile, Default: bucket(4320, 20*time.Second, true)},
		{ID: StickerPack, Default: bucket(50, 72*time.Minute, false)},
		{ID: UsernameLookup, Default: bucket(100, 15*time.Minute, true)},
		{ID: UsernameSet, Default: bucket(100, 15*time.Minute, false)},
		{ID: UsernameReserve, Default: bucket(100, 15*time.Minute, false)},
		{ID: UsernameLinkOperation, Default: bucket(10, time.Minute, false)},
		{ID: UsernameLinkLookupPerIP, Default: bucket(100, 15*time.Second, true)},
		{ID: CheckAccountExistence, Default: bucket(1000, 4*time.Second, true)},
		{ID: Registration, Default: bucket(6, 30*time.Second, false)},
		{ID: VerificationPushChallenge, Default: bucket(5, 30*time.Second, false)},
		{ID: VerificationCaptcha, Default: bucket(10, 30*time.Second, false)},
		{ID: RateLimitReset, Dynamic: true, Default: bucket(2, 12*time.Hour, false)},
		{ID: CaptchaChallengeAttempt, Dynamic: true, Default: bucket(10, 144*time.Minute, false)},
		{ID: CaptchaChallengeSuccess, Dynamic: true, Default: bucket(2, 12*time.Hour, false)},
		{ID: SetBackupID, Dynamic: true, Default: bucket(10, time.Hour, false)},
		{ID: SetPaidMediaBackupID, Dynamic: true, Default: bucket(5, 7*24*time.Hour, false)},
		{ID: PushChallengeAttempt, Dynamic: true, Default: bucket(10, 144*time.Minute, false)},
		{ID: PushChallengeSuccess, Dynamic: true, Default: bucket(2, 12*time.Hour, false)},
		{ID: GetCallingRelays, Default: bucket(100, 10*time.Minute, false)},
		{ID: CreateCallLink, Default: bucket(100, 15*time.Minute, false)},
		{ID: InboundMessageBytes, Dynamic: true, Default: bucket(128*1024*1024, 500*time.Microsecond, true)},
		{ID: ExternalServiceCredentials, Dynamic: true, Default: bucket(100, 15*time.Minute, false)},
		{ID: KeyTransparencyDistinguished, Dynamic: true, Default: bucket(100, 15*time.Second, true)},
		{ID: KeyTransparencySearch, Dynamic: true, Default: bucket(100, 15*time.Second, true)},
		{ID: KeyTransparencyMonitor, Dynamic: true, Default: bucket(100, 15*time.Second, true)},
		{ID: WaitForLinkedDevice, Dynamic: true, Default: bucket(10, 30*time.Second, false)},
		{ID: UploadTransferArchive, Dynamic: true, Default: bucket(10, time.Minute, false)},
		{ID: WaitForTransferArchive, Dynamic: true, Default: bucket(10, 30*time.Second, false)},
		{ID: RecordDeviceTransferRequest, Dynamic: true, Default: bucket(10, 100*time.Millisecond, true)},
		{ID: WaitForDeviceTransferRequest, Dynamic: true, Default: bucket(10, 100*time.Millisecond, true)},
		{ID: DeviceCheckChallenge, Dynamic: true, Default: bucket(10, time.Minute, false)},
	}
}
